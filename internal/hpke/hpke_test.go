package hpke

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divviup/divviup-console/internal/models"
)

func TestGenerateKeyPair(t *testing.T) {
	id := uint8(7)
	kp, err := GenerateKeyPair(&id)
	require.NoError(t, err)

	assert.Equal(t, uint8(7), kp.Config.ID)
	assert.Equal(t, models.KemX25519HkdfSha256, kp.Config.KemID)
	assert.Equal(t, models.KdfHkdfSha256, kp.Config.KdfID)
	assert.Equal(t, models.AeadAes128Gcm, kp.Config.AeadID)
	assert.Len(t, kp.PrivateKey, 32)
	assert.True(t, PublicKeyMatches(kp.Config, kp.PrivateKey))
	assert.NotContains(t, kp.EncodedPrivateKey(), "=")

	other, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	assert.NotEqual(t, kp.PrivateKey, other.PrivateKey)
	assert.False(t, PublicKeyMatches(kp.Config, other.PrivateKey))
}

func TestGenerateKeyPairDeterministic(t *testing.T) {
	random := bytes.NewReader(append(bytes.Repeat([]byte{1}, 32), 42))
	kp, err := generateKeyPair(random, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(42), kp.Config.ID)

	_, err = generateKeyPair(bytes.NewReader(nil), nil)
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)

	encoded, err := Encode(kp.Config)
	require.NoError(t, err)
	require.Len(t, encoded, 1+2+2+2+2+32)
	assert.Equal(t, kp.Config.ID, encoded[0])
	assert.Equal(t, []byte{0x00, 0x20, 0x00, 0x01, 0x00, 0x01, 0x00, 0x20}, encoded[1:9])

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, kp.Config, decoded)

	form, err := kp.UploadForm()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(form)
	require.NoError(t, err)
	assert.Equal(t, encoded, raw)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{1, 0, 0x20})
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Decode([]byte{1, 0, 0x20, 0, 1, 0, 1, 0, 1, 0xaa, 0xbb})
	assert.ErrorIs(t, err, ErrTrailingBytes)

	_, err = Decode([]byte{1, 0x99, 0x99, 0, 1, 0, 1, 0, 0})
	assert.ErrorContains(t, err, "unsupported kem")
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(models.HpkeConfig{KemID: "Kyber", KdfID: models.KdfHkdfSha256, AeadID: models.AeadAes128Gcm})
	assert.ErrorContains(t, err, "unsupported kem")

	_, err = Encode(models.HpkeConfig{
		KemID: models.KemX25519HkdfSha256, KdfID: models.KdfHkdfSha256, AeadID: models.AeadAes128Gcm,
		PublicKey: "not base64!",
	})
	assert.Error(t, err)
}
