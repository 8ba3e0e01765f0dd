package models

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/validation"
)

// Algorithm names as they appear in HpkeConfig JSON.
const (
	KemX25519HkdfSha256 = "X25519HkdfSha256"
	KdfHkdfSha256       = "HkdfSha256"
	AeadAes128Gcm       = "Aes128Gcm"
)

// HpkeConfig is a collector's HPKE public configuration. PublicKey is
// URL-safe base64 without padding.
type HpkeConfig struct {
	ID        uint8  `json:"id"`
	KemID     string `json:"kem_id"`
	KdfID     string `json:"kdf_id"`
	AeadID    string `json:"aead_id"`
	PublicKey string `json:"public_key"`
}

// CollectorCredential is an uploaded HPKE config. Token is present only in
// the creation response.
type CollectorCredential struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	HpkeConfig HpkeConfig `json:"hpke_config"`
	Name       *string    `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at"`
	TokenHash  *string    `json:"token_hash"`
	Token      *string    `json:"token,omitempty"`
}

func (c *CollectorCredential) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return c.ID.String()
}

func (c *CollectorCredential) IsDeleted() bool {
	return c.DeletedAt != nil
}

// NewCollectorCredential uploads an HPKE config given as standard base64
// of its DAP encoding.
type NewCollectorCredential struct {
	Name       *string `json:"name,omitempty"`
	HpkeConfig string  `json:"hpke_config"`
}

func (c NewCollectorCredential) Validate() validation.Node {
	errs := validation.Node{}
	switch {
	case strings.TrimSpace(c.HpkeConfig) == "":
		errs.Add("hpke_config", validation.NewViolation("required"))
	default:
		if _, err := base64.StdEncoding.DecodeString(c.HpkeConfig); err != nil {
			errs.Add("hpke_config", validation.NewViolation("base64"))
		}
	}
	if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	return errs
}

type UpdateCollectorCredential struct {
	Name string `json:"name"`
}

func (c UpdateCollectorCredential) Validate() validation.Node {
	errs := validation.Node{}
	if strings.TrimSpace(c.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	return errs
}

// ApiToken authenticates non-browser API clients. Token is present only
// in the creation response.
type ApiToken struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	TokenHash  string     `json:"token_hash"`
	Name       *string    `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	Token      *string    `json:"token,omitempty"`
}

func (t *ApiToken) IsDeleted() bool {
	return t.DeletedAt != nil
}

type UpdateApiToken struct {
	Name string `json:"name"`
}

func (t UpdateApiToken) Validate() validation.Node {
	errs := validation.Node{}
	if strings.TrimSpace(t.Name) == "" {
		errs.Add("name", validation.NewViolation("required"))
	}
	return errs
}
