package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/venturegate/auth-service/internal/domain"
	"github.com/venturegate/auth-service/internal/security"
)

// SeedReport says what the development seeder actually created.
type SeedReport struct {
	CreatedAccount bool `json:"created_account"`
	CreatedProfile bool `json:"created_profile"`
	Noop           bool `json:"noop"`
}

// SeedDevAccount provisions one pre-verified account for local
// development so the login flow can be exercised without an email
// relay. Idempotent; existing accounts are left untouched.
func SeedDevAccount(db *gorm.DB, email, password string) (*SeedReport, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" {
		return nil, fmt.Errorf("email is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	report := &SeedReport{}
	var existing domain.Account
	err := db.Where("email = ?", normalized).First(&existing).Error
	if err == nil {
		report.Noop = true
		return report, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hasher := security.NewHasher(security.DefaultHasherParams())
	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	account := domain.Account{
		Email:        normalized,
		Name:         "Dev Account",
		PasswordHash: hash,
		Active:       true,
		Investor:     true,
		Individual:   true,
	}
	if err := db.Create(&account).Error; err != nil {
		return nil, err
	}
	report.CreatedAccount = true

	profile := domain.Profile{
		AccountID: account.ID,
		Kind:      domain.ProfileKindInvestor,
	}
	if err := db.Create(&profile).Error; err != nil {
		return nil, err
	}
	report.CreatedProfile = true
	return report, nil
}
