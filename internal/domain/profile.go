package domain

import "time"

const (
	ProfileKindInvestor = "investor"
	ProfileKindBusiness = "business"
)

// Profile is the companion record created alongside every account
// during registration. Which kind is created depends on the account
// flags; business is the default.
type Profile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	Kind         string    `gorm:"size:32;not null" json:"kind"`
	ContactInfo  string    `gorm:"size:100" json:"contact_info"`
	AddressInfo  string    `gorm:"size:255" json:"address_info"`
	BusinessName string    `gorm:"size:255" json:"business_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
