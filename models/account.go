package models

import "time"

// MasterAccountUsername is the default username for the master account.
const MasterAccountUsername = "admin"

// Account represents a registered viewer. The master account is created on
// first startup and can manage other accounts.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized in API responses
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
