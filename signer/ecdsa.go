// Package signer produces ECDSA signatures over artifacts and pre-computed
// digests. Signatures are ASN.1 DER ECDSA-Sig-Value structures, the format
// any standard verifier accepts.
package signer

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"fmt"

	sigstoreSignature "github.com/sigstore/sigstore/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature/options"
)

// supportedHashes are the digest algorithms an ECDSASigner can be built
// with.
var supportedHashes = []crypto.Hash{crypto.SHA256, crypto.SHA384, crypto.SHA512}

// ECDSASigner signs artifacts with an EC private key and a fixed hash
// algorithm. The signer serializes nothing internally; the underlying key
// must not be mutated by the caller while in use.
type ECDSASigner struct {
	privateKey *ecdsa.PrivateKey
	hash       crypto.Hash
	sv         sigstoreSignature.SignerVerifier
}

// NewECDSASigner returns a signer using privateKey with hash, one of
// SHA-256, SHA-384 or SHA-512.
func NewECDSASigner(privateKey *ecdsa.PrivateKey, hash crypto.Hash) (*ECDSASigner, error) {
	supported := false
	for _, h := range supportedHashes {
		if h == hash {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported hash algorithm %s", hash)
	}
	sv, err := sigstoreSignature.LoadECDSASignerVerifier(privateKey, hash)
	if err != nil {
		return nil, err
	}
	return &ECDSASigner{
		privateKey: privateKey,
		hash:       hash,
		sv:         sv,
	}, nil
}

// Sign hashes artifact with the signer's hash algorithm and returns a DER
// ECDSA signature over the digest.
func (s *ECDSASigner) Sign(artifact []byte) ([]byte, error) {
	return s.sv.SignMessage(bytes.NewReader(artifact))
}

// SignDigest signs a pre-computed digest directly, without hashing again.
// The digest length must match the signer's hash algorithm exactly.
func (s *ECDSASigner) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != s.hash.Size() {
		return nil, fmt.Errorf("Artifact digest must be %d bytes", s.hash.Size())
	}
	return s.sv.SignMessage(nil, options.WithDigest(digest))
}

// PublicKey returns the EC public key matching the signing key, for binding
// into certificate requests.
func (s *ECDSASigner) PublicKey() *ecdsa.PublicKey {
	return &s.privateKey.PublicKey
}

// HashAlgorithm returns the digest algorithm the signer was built with.
func (s *ECDSASigner) HashAlgorithm() crypto.Hash {
	return s.hash
}
