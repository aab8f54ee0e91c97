// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the superadmin (admin@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/db"
	rbacdomain "crimewatch/backend/internal/rbac/domain"
	rbacrepo "crimewatch/backend/internal/rbac/repository"
	"crimewatch/backend/internal/security"
	userdomain "crimewatch/backend/internal/user/domain"
	userrepo "crimewatch/backend/internal/user/repository"
)

const (
	adminEmail    = "admin@example.com"
	adminID       = "dev-admin-001"
	citizenEmail  = "citizen@example.com"
	citizenID     = "dev-citizen-001"
	subUserEmail  = "subuser@example.com"
	subUserID     = "dev-subuser-001"
	analystEmail  = "analyst@example.com"
	analystID     = "dev-analyst-001"
	analystRoleID = "dev-role-analyst"
	devPassword   = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool, cfg.QueryTimeout())
	roles := rbacrepo.NewPostgresRepository(pool, cfg.QueryTimeout())

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	newUser := func(id, email, name, parentID string, superadmin bool) *userdomain.User {
		return &userdomain.User{
			ID: id, Email: email, Name: name, PasswordHash: passwordHash,
			Active: true, Superadmin: superadmin, ParentID: parentID,
			CreatedAt: now, UpdatedAt: now,
		}
	}

	for _, u := range []*userdomain.User{
		newUser(adminID, adminEmail, "Dev Admin", "", true),
		newUser(citizenID, citizenEmail, "Dev Citizen", "", false),
		newUser(subUserID, subUserEmail, "Dev Sub User", citizenID, false),
		newUser(analystID, analystEmail, "Dev Analyst", "", false),
	} {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Email, err)
		}
	}

	if err := roles.CreateRole(ctx, &rbacdomain.Role{ID: analystRoleID, Name: "analyst", CreatedAt: now}); err != nil {
		log.Fatalf("create role: %v", err)
	}
	if err := roles.AssignRole(ctx, analystID, analystRoleID); err != nil {
		log.Fatalf("assign role: %v", err)
	}
	for _, g := range []*rbacdomain.Grant{
		{RoleID: analystRoleID, Module: "reports", Permission: "read"},
		{RoleID: analystRoleID, Module: "reports", Permission: "update"},
	} {
		if err := roles.AddGrant(ctx, g); err != nil {
			log.Fatalf("add grant %s/%s: %v", g.Module, g.Permission, err)
		}
	}

	log.Println("Seed complete:")
	log.Printf("  superadmin: %s / %s", adminEmail, devPassword)
	log.Printf("  citizen:    %s / %s (parent of %s)", citizenEmail, devPassword, subUserEmail)
	log.Printf("  sub-user:   %s / %s", subUserEmail, devPassword)
	log.Printf("  analyst:    %s / %s (role analyst: reports read/update)", analystEmail, devPassword)
}
