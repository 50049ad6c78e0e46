package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestNewECDSASigner(t *testing.T) {
	key := generateKey(t)
	for _, hash := range []crypto.Hash{crypto.SHA256, crypto.SHA384, crypto.SHA512} {
		s, err := NewECDSASigner(key, hash)
		require.NoError(t, err)
		assert.Equal(t, hash, s.HashAlgorithm())
		assert.True(t, key.PublicKey.Equal(s.PublicKey()))
	}

	_, err := NewECDSASigner(key, crypto.SHA1)
	assert.Error(t, err)
	_, err = NewECDSASigner(key, crypto.MD5)
	assert.Error(t, err)
}

func TestSign(t *testing.T) {
	key := generateKey(t)
	artifact := []byte("some artifact payload")

	s, err := NewECDSASigner(key, crypto.SHA256)
	require.NoError(t, err)
	sig, err := s.Sign(artifact)
	require.NoError(t, err)

	// The output is a DER ECDSA-Sig-Value a standard verifier accepts.
	digest := sha256.Sum256(artifact)
	assert.True(t, ecdsa.VerifyASN1(s.PublicKey(), digest[:], sig))

	// A different artifact does not verify.
	otherDigest := sha256.Sum256([]byte("something else"))
	assert.False(t, ecdsa.VerifyASN1(s.PublicKey(), otherDigest[:], sig))
}

func TestSignDigest(t *testing.T) {
	key := generateKey(t)
	artifact := []byte("some artifact payload")

	s, err := NewECDSASigner(key, crypto.SHA256)
	require.NoError(t, err)

	// Signing a pre-computed digest is equivalent to signing the artifact.
	digest := sha256.Sum256(artifact)
	sig, err := s.SignDigest(digest[:])
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(s.PublicKey(), digest[:], sig))

	// The digest length must match the hash algorithm exactly.
	_, err = s.SignDigest(digest[:31])
	require.Error(t, err)
	assert.Equal(t, "Artifact digest must be 32 bytes", err.Error())
	_, err = s.SignDigest(append(digest[:], 0))
	assert.Error(t, err)

	s512, err := NewECDSASigner(key, crypto.SHA512)
	require.NoError(t, err)
	_, err = s512.SignDigest(digest[:])
	require.Error(t, err)
	assert.Equal(t, "Artifact digest must be 64 bytes", err.Error())
	digest512 := sha512.Sum512(artifact)
	sig, err = s512.SignDigest(digest512[:])
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(s.PublicKey(), digest512[:], sig))
}
