package model

import "time"

// Roles a user account can hold.  Organisers create events and tiers and
// run check-in; customers only buy.
const (
	RoleCustomer  = "CUSTOMER"
	RoleOrganiser = "ORGANISER"
)

// User represents an account stored in the `users` table.  Every user
// owns exactly one Wallet, created alongside the user row.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address, also the default ticket recipient.
//  FullName     – display name.
//  PasswordHash – bcrypt hashed password.
//  Role         – CUSTOMER or ORGANISER.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	FullName     string    // users.full_name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
