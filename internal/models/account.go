// Package models holds the JSON wire types of the Divvi Up API.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/validation"
)

// User is the identity behind the current session.
type User struct {
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	Nickname      string    `json:"nickname"`
	Picture       string    `json:"picture"`
	Sub           string    `json:"sub"`
	UpdatedAt     time.Time `json:"updated_at"`
	Admin         bool      `json:"admin"`
}

// Account is a tenant owning tasks, aggregators and credentials.
type Account struct {
	ID                            uuid.UUID `json:"id"`
	Name                          string    `json:"name"`
	CreatedAt                     time.Time `json:"created_at"`
	UpdatedAt                     time.Time `json:"updated_at"`
	Admin                         bool      `json:"admin"`
	IntendsToUseSharedAggregators *bool     `json:"intends_to_use_shared_aggregators"`
}

// NewAccount is the body of an account creation.
type NewAccount struct {
	Name string `json:"name"`
}

// Validate mirrors the server's checks so a form can be rejected before
// it is sent.
func (a NewAccount) Validate() validation.Node {
	errs := validation.Node{}
	if strings.TrimSpace(a.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	return errs
}

// UpdateAccount is a partial account update; nil fields are left unchanged.
type UpdateAccount struct {
	Name                          *string `json:"name,omitempty"`
	IntendsToUseSharedAggregators *bool   `json:"intends_to_use_shared_aggregators,omitempty"`
}

func (a UpdateAccount) Validate() validation.Node {
	errs := validation.Node{}
	if a.Name != nil && strings.TrimSpace(*a.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	return errs
}

// Membership grants a user access to an account.
type Membership struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	UserEmail string    `json:"user_email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMembership invites a user by email.
type NewMembership struct {
	UserEmail string `json:"user_email"`
}

func (m NewMembership) Validate() validation.Node {
	errs := validation.Node{}
	email := strings.TrimSpace(m.UserEmail)
	switch {
	case email == "":
		errs.Add("user_email", validation.NewViolation("required"))
	case !strings.Contains(email, "@"):
		errs.Add("user_email", validation.NewViolation("email"))
	}
	return errs
}
