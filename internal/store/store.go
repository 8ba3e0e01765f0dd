// Package store keeps state the API does not hold for us: private keys of
// generated collector credentials, the ids of failed jobs already
// reported, and small CLI settings.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

// ErrKeyNotFound is returned when no private key is stored for a credential.
var ErrKeyNotFound = errors.New("collector key not found")

// CollectorKey is the private half of a collector credential generated
// locally. PrivateKey is URL-safe base64 without padding.
type CollectorKey struct {
	CredentialID uuid.UUID
	AccountID    uuid.UUID
	Name         string
	Config       models.HpkeConfig
	PrivateKey   string
	CreatedAt    time.Time
}

// Store persists collector keys and notification state.
type Store interface {
	SaveKey(key *CollectorKey) error
	GetKey(credentialID uuid.UUID) (*CollectorKey, error)
	ListKeys(accountID uuid.UUID) ([]*CollectorKey, error)
	DeleteKey(credentialID uuid.UUID) error

	// MarkNotified records that jobID was reported and returns false if
	// it already had been.
	MarkNotified(jobID uuid.UUID) (bool, error)
	// PruneNotified forgets jobs reported before the given time and
	// returns how many were forgotten.
	PruneNotified(before time.Time) (int64, error)

	Settings() SettingsStore
	Close() error
}
