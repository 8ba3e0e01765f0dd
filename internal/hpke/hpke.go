// Package hpke generates collector key pairs and converts HPKE configs
// between their JSON form and the DAP wire encoding.
package hpke

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/curve25519"

	"github.com/divviup/divviup-console/internal/models"
)

// Algorithm identifiers from RFC 9180.
const (
	KemX25519HkdfSha256 uint16 = 0x0020
	KdfHkdfSha256       uint16 = 0x0001
	AeadAes128Gcm       uint16 = 0x0001
)

var kems = map[uint16]string{
	0x0010:              "P256HkdfSha256",
	0x0011:              "P384HkdfSha384",
	0x0012:              "P521HkdfSha512",
	KemX25519HkdfSha256: models.KemX25519HkdfSha256,
	0x0021:              "X448HkdfSha512",
}

var kdfs = map[uint16]string{
	KdfHkdfSha256: models.KdfHkdfSha256,
	0x0002:        "HkdfSha384",
	0x0003:        "HkdfSha512",
}

var aeads = map[uint16]string{
	AeadAes128Gcm: models.AeadAes128Gcm,
	0x0002:        "Aes256Gcm",
	0x0003:        "ChaCha20Poly1305",
}

var (
	ErrTruncated     = errors.New("hpke config is truncated")
	ErrTrailingBytes = errors.New("hpke config has trailing bytes")
)

func lookup(table map[uint16]string, id uint16, kind string) (string, error) {
	name, ok := table[id]
	if !ok {
		return "", fmt.Errorf("unsupported %s id 0x%04x", kind, id)
	}
	return name, nil
}

func reverse(table map[uint16]string, name, kind string) (uint16, error) {
	for id, n := range table {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unsupported %s %q", kind, name)
}

// Encode renders cfg in the DAP encoding: id(u8) kem(u16) kdf(u16)
// aead(u16) followed by the u16 length-prefixed public key.
func Encode(cfg models.HpkeConfig) ([]byte, error) {
	kem, err := reverse(kems, cfg.KemID, "kem")
	if err != nil {
		return nil, err
	}
	kdf, err := reverse(kdfs, cfg.KdfID, "kdf")
	if err != nil {
		return nil, err
	}
	aead, err := reverse(aeads, cfg.AeadID, "aead")
	if err != nil {
		return nil, err
	}
	publicKey, err := base64.RawURLEncoding.DecodeString(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key is not url-safe base64: %w", err)
	}

	var b cryptobyte.Builder
	b.AddUint8(cfg.ID)
	b.AddUint16(kem)
	b.AddUint16(kdf)
	b.AddUint16(aead)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(publicKey)
	})
	return b.Bytes()
}

// Decode parses the DAP encoding of an HPKE config.
func Decode(data []byte) (models.HpkeConfig, error) {
	s := cryptobyte.String(data)
	var (
		id             uint8
		kem, kdf, aead uint16
		publicKey      cryptobyte.String
		cfg            models.HpkeConfig
	)
	if !s.ReadUint8(&id) || !s.ReadUint16(&kem) || !s.ReadUint16(&kdf) || !s.ReadUint16(&aead) ||
		!s.ReadUint16LengthPrefixed(&publicKey) {
		return cfg, ErrTruncated
	}
	if !s.Empty() {
		return cfg, ErrTrailingBytes
	}

	var err error
	cfg.ID = id
	if cfg.KemID, err = lookup(kems, kem, "kem"); err != nil {
		return cfg, err
	}
	if cfg.KdfID, err = lookup(kdfs, kdf, "kdf"); err != nil {
		return cfg, err
	}
	if cfg.AeadID, err = lookup(aeads, aead, "aead"); err != nil {
		return cfg, err
	}
	cfg.PublicKey = base64.RawURLEncoding.EncodeToString(publicKey)
	return cfg, nil
}

// KeyPair is a generated collector key pair.
type KeyPair struct {
	Config     models.HpkeConfig
	PrivateKey []byte
}

// GenerateKeyPair creates an X25519HkdfSha256 / HkdfSha256 / Aes128Gcm
// key pair. A nil id picks a random config id.
func GenerateKeyPair(id *uint8) (*KeyPair, error) {
	return generateKeyPair(rand.Reader, id)
}

func generateKeyPair(random io.Reader, id *uint8) (*KeyPair, error) {
	private := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(random, private); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	var configID uint8
	if id != nil {
		configID = *id
	} else {
		var b [1]byte
		if _, err := io.ReadFull(random, b[:]); err != nil {
			return nil, fmt.Errorf("failed to read random bytes: %w", err)
		}
		configID = b[0]
	}

	return &KeyPair{
		Config: models.HpkeConfig{
			ID:        configID,
			KemID:     models.KemX25519HkdfSha256,
			KdfID:     models.KdfHkdfSha256,
			AeadID:    models.AeadAes128Gcm,
			PublicKey: base64.RawURLEncoding.EncodeToString(public),
		},
		PrivateKey: private,
	}, nil
}

// EncodedPrivateKey is the private key as URL-safe base64 without padding,
// the form collectors expect.
func (k *KeyPair) EncodedPrivateKey() string {
	return base64.RawURLEncoding.EncodeToString(k.PrivateKey)
}

// UploadForm is the config in the form collector credential creation
// takes: standard base64 of the DAP encoding.
func (k *KeyPair) UploadForm() (string, error) {
	encoded, err := Encode(k.Config)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}

// PublicKeyMatches reports whether private derives the public key in cfg.
func PublicKeyMatches(cfg models.HpkeConfig, private []byte) bool {
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return false
	}
	return base64.RawURLEncoding.EncodeToString(public) == cfg.PublicKey
}
