// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gradevault/backend/internal/config"
	coursedomain "gradevault/backend/internal/course/domain"
	courserepo "gradevault/backend/internal/course/repository"
	"gradevault/backend/internal/db"
	identitydomain "gradevault/backend/internal/identity/domain"
	identityrepo "gradevault/backend/internal/identity/repository"
	"gradevault/backend/internal/security"
)

const (
	adminEmail   = "admin@example.com"
	graderEmail  = "grader@example.com"
	subjectEmail = "subject@example.com"
	devPassword  = "Dev-Passw0rd-2024!"

	adminID   = "dev-admin-001"
	graderID  = "dev-grader-001"
	subjectID = "dev-subject-001"
	courseID  = "dev-course-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := identityrepo.NewPostgresRepository(conn)
	courses := courserepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher()
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	seedUser := func(id, name, email string, role identitydomain.Role) {
		publicPEM, privatePEM, err := security.GenerateKeyPair()
		if err != nil {
			log.Fatalf("generate key pair for %s: %v", email, err)
		}
		if role != identitydomain.RoleGrader {
			privatePEM = ""
		}
		u := &identitydomain.User{
			ID:            id,
			Name:          name,
			Email:         email,
			Role:          role,
			PasswordHash:  passwordHash,
			PublicKeyPEM:  publicPEM,
			PrivateKeyPEM: privatePEM,
			CreatedAt:     now,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create %s: %v", email, err)
		}
	}

	seedUser(adminID, "Dev Admin", adminEmail, identitydomain.RoleAdmin)
	seedUser(graderID, "Dev Grader", graderEmail, identitydomain.RoleGrader)
	seedUser(subjectID, "Dev Subject", subjectEmail, identitydomain.RoleSubject)

	course := &coursedomain.Course{
		ID:        courseID,
		Code:      "CS101",
		Title:     "Intro to Computer Science",
		GraderID:  graderID,
		CreatedAt: now,
	}
	if err := courses.Create(ctx, course); err != nil {
		log.Fatalf("create course: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login:   %s / %s\n", adminEmail, devPassword)
	fmt.Printf("Grader login:  %s / %s\n", graderEmail, devPassword)
	fmt.Printf("Subject login: %s / %s\n", subjectEmail, devPassword)
}
