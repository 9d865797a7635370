// seed-admin creates (or reuses) a user, grants it the global admin role
// and prints a bearer token for the /internal/ops endpoints.
//
// Usage:
//
//	API_SECRET=... DB_USER=... DB_PASSWORD=... go run ./cmd/seed-admin -email ops@example.org
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/rms_backend/access"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/store"
	"github.com/mmdatafocus/rms_backend/utils"
)

func main() {
	email := flag.String("email", "", "Required: admin email")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if !utils.IsValidEmail(strings.TrimSpace(*email)) {
		fmt.Fprintln(os.Stderr, "-email is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	// auth tables carry no realm
	ctx := utils.SkipRealmInContext(context.Background())
	st := store.New(db)

	u, err := st.GetUserByEmail(ctx, *email)
	if err != nil && !utils.IsNotFound(err) {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}
	if u == nil {
		u, err = createUser(ctx, st, *email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created user %q (id=%d)\n", u.Email, u.ID)
	}

	acl, err := access.New(st, config.GetLogger())
	if err == nil {
		err = acl.Load(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load memberships: %v\n", err)
		os.Exit(1)
	}
	if ok, _ := acl.HasRole(ctx, u.ID, access.RoleAdmin, nil); !ok {
		if err := acl.AddMembership(ctx, u.ID, access.RoleAdmin, nil); err != nil {
			fmt.Fprintf(os.Stderr, "failed to grant admin: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Granted %s to user %d\n", access.RoleAdmin, u.ID)
	}

	token, err := utils.JwtGenerate(u.ID, utils.DereferencePtr(u.OrganisationId), u.Language, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func createUser(ctx context.Context, st *store.Store, email string) (*models.User, error) {
	var u *models.User
	err := st.Transaction(ctx, func(ctx context.Context) error {
		e := &models.Entity{Kind: models.EntityKindPerson, InstanceTable: "pr_person"}
		if err := st.CreateEntity(ctx, e); err != nil {
			return err
		}
		u = &models.User{
			Email:     email,
			FirstName: strings.Split(email, "@")[0],
			Language:  config.GetSettings().DefaultLanguage,
			PeId:      e.ID,
		}
		if err := st.CreateUser(ctx, u); err != nil {
			return err
		}
		p := &models.Person{PeId: e.ID, UserId: &u.ID, FirstName: u.FirstName}
		if err := st.CreatePerson(ctx, p); err != nil {
			return err
		}
		return st.UpdateEntityInstance(ctx, e.ID, "pr_person", p.ID)
	})
	return u, err
}
