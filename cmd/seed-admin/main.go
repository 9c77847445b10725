package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/models"
	"github.com/keyflowhq/keyflow_backend/utils"
)

// seed-admin bootstraps a fresh install: it creates the first dealership and
// its admin account so someone can log in and invite the rest of the team.
//
//	go run ./cmd/seed-admin -dealership "Hilltop Auto" -name "Pat Admin" \
//	  -email pat@hilltop.example -password changeme
func main() {
	dealershipName := flag.String("dealership", "", "dealership name")
	adminName := flag.String("name", "", "admin display name")
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password")
	owner := flag.Bool("owner", false, "create a fleet owner instead of a dealership admin")
	flag.Parse()

	if *adminName == "" || *email == "" || *password == "" {
		log.Fatal("name, email and password are required")
	}
	if !*owner && *dealershipName == "" {
		log.Fatal("dealership is required unless -owner is set")
	}
	if !utils.IsValidEmail(*email) {
		log.Fatal("email is not valid")
	}

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	store := models.NewDBLifecycleStore()

	if _, err := store.GetUserByEmail(ctx, "", strings.ToLower(*email)); err == nil {
		log.Fatalf("a user with email %s already exists", *email)
	}

	dealershipId := ""
	if !*owner {
		dealership := &models.Dealership{
			ID:       uuid.NewString(),
			Name:     *dealershipName,
			IsActive: utils.NewTrue(),
		}
		if err := store.CreateDealership(ctx, dealership); err != nil {
			log.Fatalf("create dealership: %v", err)
		}
		dealershipId = dealership.ID
		log.Printf("created dealership %s (%s)", dealership.Name, dealership.ID)
	}

	hash, err := utils.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	role := string(models.UserRoleDealershipAdmin)
	if *owner {
		role = string(models.UserRoleOwner)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		DealershipId: dealershipId,
		Name:         *adminName,
		Email:        strings.ToLower(*email),
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     utils.NewTrue(),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		log.Fatalf("create user: %v", err)
	}
	log.Printf("created %s %s (%s)", role, user.Name, user.ID)
}
