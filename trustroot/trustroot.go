// Package trustroot models the trusted material a Fulcio certificate
// verifier is built from: certificate authorities and certificate
// transparency logs, each bounded by an explicit validity window.
package trustroot

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/containers/fulcio-verify/certpath"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// Window is a half-open time interval [Start, End). A zero End leaves the
// interval open-ended.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	return w.End.IsZero() || t.Before(w.End)
}

// CertificateAuthority is a CA trusted to issue signing certificates during
// its validity window.
type CertificateAuthority struct {
	// CertPath is the CA's own chain, intermediates first, ending at the
	// self-signed root.
	CertPath certpath.CertPath
	// URI identifies the CA in error messages.
	URI string
	// ValidFor bounds the issuance times this CA is trusted for.
	ValidFor Window

	anchor *x509.Certificate
}

// NewCertificateAuthority builds a CertificateAuthority and eagerly derives
// its trust anchor. Failing here turns a malformed trust root into a
// construction-time error instead of a verify-time surprise.
func NewCertificateAuthority(path certpath.CertPath, uri string, validFor Window) (*CertificateAuthority, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("certificate authority %q has an empty certificate path", uri)
	}
	root := path[len(path)-1]
	if !bytes.Equal(root.RawSubject, root.RawIssuer) {
		return nil, fmt.Errorf("certificate authority %q does not terminate in a self-signed root", uri)
	}
	if err := root.CheckSignature(root.SignatureAlgorithm, root.RawTBSCertificate, root.Signature); err != nil {
		return nil, fmt.Errorf("certificate authority %q root self-signature is invalid: %w", uri, err)
	}
	return &CertificateAuthority{
		CertPath: path,
		URI:      uri,
		ValidFor: validFor,
		anchor:   root,
	}, nil
}

// TrustAnchor returns the self-signed root this CA chains to.
func (ca *CertificateAuthority) TrustAnchor() *x509.Certificate {
	return ca.anchor
}

// FindCertificateAuthorities returns the CAs whose validity window contains
// t, preserving input order. Ordering matters only for deterministic error
// reporting.
func FindCertificateAuthorities(cas []*CertificateAuthority, t time.Time) []*CertificateAuthority {
	var found []*CertificateAuthority
	for _, ca := range cas {
		if ca.ValidFor.Contains(t) {
			found = append(found, ca)
		}
	}
	return found
}

// LogIDSize is the length of a certificate transparency LogID.
const LogIDSize = sha256.Size

// TransparencyLog is a certificate transparency log trusted to countersign
// certificates during its validity window.
type TransparencyLog struct {
	// PublicKey is the log's signing key (ECDSA P-256 in practice, RSA
	// accepted).
	PublicKey crypto.PublicKey
	// BaseURL identifies the log.
	BaseURL string
	// LogID is the SHA-256 of the log key's SubjectPublicKeyInfo.
	LogID [LogIDSize]byte
	// ValidFor bounds the SCT timestamps this log is trusted for.
	ValidFor Window
}

// NewTransparencyLog builds a TransparencyLog, materializing the LogID from
// the key's SPKI.
func NewTransparencyLog(publicKey crypto.PublicKey, baseURL string, validFor Window) (*TransparencyLog, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("transparency log %q has no public key", baseURL)
	}
	spki, err := cryptoutils.MarshalPublicKeyToDER(publicKey)
	if err != nil {
		return nil, fmt.Errorf("transparency log %q public key is not encodable: %w", baseURL, err)
	}
	return &TransparencyLog{
		PublicKey: publicKey,
		BaseURL:   baseURL,
		LogID:     sha256.Sum256(spki),
		ValidFor:  validFor,
	}, nil
}

// FindTransparencyLog returns the first log whose LogID matches logID
// byte-for-byte and whose validity window contains t, or nil.
func FindTransparencyLog(logs []*TransparencyLog, logID []byte, t time.Time) *TransparencyLog {
	if len(logID) != LogIDSize {
		return nil
	}
	for _, log := range logs {
		if bytes.Equal(log.LogID[:], logID) && log.ValidFor.Contains(t) {
			return log
		}
	}
	return nil
}

// TrustRoot aggregates the trusted CAs and CT logs a verifier is built from.
type TrustRoot struct {
	CertificateAuthorities []*CertificateAuthority
	CTLogs                 []*TransparencyLog
}

// Validate checks that the trust root contains at least one CA.
func (tr *TrustRoot) Validate() error {
	if len(tr.CertificateAuthorities) == 0 {
		return errors.New("trust root contains no certificate authorities")
	}
	return nil
}
