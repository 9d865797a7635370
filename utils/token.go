package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/mmdatafocus/rms_backend/config"
)

// JwtCustomClaim identifies the caller of the internal ops endpoints.
type JwtCustomClaim struct {
	ID             int    `json:"id"`
	OrganisationId int    `json:"organisation_id"`
	Language       string `json:"language"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := config.GetSettings().APISecret
	if secret == "" {
		return []byte("rms-dev-secret")
	}
	return []byte(secret)
}

func JwtGenerate(userID int, organisationId int, language string, lifespan time.Duration) (string, error) {
	if lifespan <= 0 {
		lifespan = time.Hour
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:             userID,
		OrganisationId: organisationId,
		Language:       language,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(lifespan).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(getJwtSecret())
}

func JwtValidate(token string) (*JwtCustomClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
