package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
)

// seedPassword is shared by every seeded account. Seeding only runs when
// the seed flag is on, which defaults to dev only.
const seedPassword = "P@ssword123"

type seedAccount struct {
	id       uuid.UUID
	username string
	email    string
	phone    *string
	role     models.Role
}

var seedAccounts = []seedAccount{
	{uuid.MustParse("0c7a3c52-1a1e-4c1e-9d2e-000000000001"), "seedofficer", "officer@tenders.test", utils.Ptr("+15550000001"), models.RoleOfficer},
	{uuid.MustParse("0c7a3c52-1a1e-4c1e-9d2e-000000000002"), "seedauditor", "auditor@tenders.test", nil, models.RoleAuditor},
	{uuid.MustParse("0c7a3c52-1a1e-4c1e-9d2e-000000000003"), "seedcontractor", "contractor@tenders.test", utils.Ptr("+15550000003"), models.RoleContractor},
}

// SeedTestData inserts one account per role and a demo tender. Existing rows
// are left alone.
func SeedTestData(users repositories.UserRepository, tenders repositories.TenderRepository) error {
	ctx := context.Background()
	hash, err := utils.HashPassword(seedPassword)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	now := time.Now().UTC()
	for _, acc := range seedAccounts {
		u := &models.User{
			ID:           acc.id,
			Username:     acc.username,
			Email:        acc.email,
			PhoneNumber:  acc.phone,
			PasswordHash: hash,
			Role:         acc.role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, u); err != nil {
			if errors.Is(err, utils.ErrUsernameExists) {
				utils.Logger.Infof("Seed user %s already present; skipping.", acc.username)
				continue
			}
			return fmt.Errorf("insert seed user %s: %w", acc.username, err)
		}
		utils.Logger.Infof("Seeded %s account %s (id=%s).", acc.role, acc.username, acc.id)
	}

	demoID := uuid.MustParse("0c7a3c52-1a1e-4c1e-9d2e-0000000000aa")
	existing, err := tenders.GetByID(ctx, demoID)
	if err != nil {
		return fmt.Errorf("checking demo tender: %w", err)
	}
	if existing != nil {
		return nil
	}
	if err := tenders.Create(ctx, &models.Tender{
		ID:          demoID,
		Title:       "Demo: municipal road resurfacing",
		Description: "Seeded tender for local development.",
		Deadline:    now.Add(7 * 24 * time.Hour),
		CreatedBy:   seedAccounts[0].id,
		Status:      models.TenderStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return fmt.Errorf("insert demo tender: %w", err)
	}
	utils.Logger.Infof("Seeded demo tender (id=%s).", demoID)
	return nil
}
