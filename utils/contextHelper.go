package utils

import (
	"context"

	"github.com/mmdatafocus/rms_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken          = appctx.ContextKeyToken
	ContextKeyUserId         = appctx.ContextKeyUserId
	ContextKeyOrganisationId = appctx.ContextKeyOrganisationId
	ContextKeyLanguage       = appctx.ContextKeyLanguage
	ContextKeyCorrelationId  = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetOrganisationIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyOrganisationId)
}

// GetLanguageFromContext returns the UI language of the current user, or "" if unset.
func GetLanguageFromContext(ctx context.Context) string {
	lang, _ := appctx.GetString(ctx, ContextKeyLanguage)
	return lang
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetOrganisationIdInContext(ctx context.Context, organisationId int) context.Context {
	return appctx.Set(ctx, ContextKeyOrganisationId, organisationId)
}

func SetLanguageInContext(ctx context.Context, lang string) context.Context {
	return appctx.Set(ctx, ContextKeyLanguage, lang)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// SkipRealmInContext marks writes made with ctx as not needing realm resolution.
func SkipRealmInContext(ctx context.Context) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySkipRealm, true)
}

func IsRealmSkipped(ctx context.Context) bool {
	v, _ := appctx.GetBool(ctx, appctx.ContextKeySkipRealm)
	return v
}
