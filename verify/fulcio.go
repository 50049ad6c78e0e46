// Package verify checks Fulcio-issued signing certificates against a trust
// root: the certificate must chain to a trusted certificate authority via
// PKIX path validation pinned inside the leaf's validity window, and must
// carry at least one embedded Signed Certificate Timestamp produced by a
// trusted certificate transparency log inside that log's own validity
// window.
package verify

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/containers/fulcio-verify/certpath"
	"github.com/containers/fulcio-verify/ctlog"
	"github.com/containers/fulcio-verify/trustroot"
	"github.com/containers/fulcio-verify/verify/internal"
	ct "github.com/google/certificate-transparency-go"
	"github.com/sirupsen/logrus"
)

// VerificationError is the error returned for any verification failure.
type VerificationError = internal.VerificationError

// FulcioVerifier verifies signing certificates against a fixed trust root.
// It is immutable after construction and safe for concurrent use.
type FulcioVerifier struct {
	cas        []*trustroot.CertificateAuthority
	ctLogs     []*trustroot.TransparencyLog
	ctVerifier *ctlog.Verifier
	sctQuorum  int
	identity   *identityPolicy
}

// Option customizes a FulcioVerifier.
type Option func(*FulcioVerifier)

// WithSCTQuorum sets how many SCTs must pass both the cryptographic check
// and the log-validity check. The default is 1.
func WithSCTQuorum(quorum int) Option {
	return func(f *FulcioVerifier) {
		f.sctQuorum = quorum
	}
}

// WithIdentityPolicy additionally requires the leaf to carry the given
// Fulcio OIDC issuer extension value and an email SAN equal to
// subjectEmail.
func WithIdentityPolicy(oidcIssuer, subjectEmail string) Option {
	return func(f *FulcioVerifier) {
		f.identity = &identityPolicy{oidcIssuer: oidcIssuer, subjectEmail: subjectEmail}
	}
}

// NewFulcioVerifier builds a verifier from the trust root. Every configured
// CA must already yield a usable trust anchor; failing here guarantees that
// verify-time failures cannot come from trust-root malformation.
func NewFulcioVerifier(tr *trustroot.TrustRoot, opts ...Option) (*FulcioVerifier, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	for _, ca := range tr.CertificateAuthorities {
		if ca.TrustAnchor() == nil {
			return nil, fmt.Errorf("certificate authority %q has no trust anchor", ca.URI)
		}
	}
	f := &FulcioVerifier{
		cas:        tr.CertificateAuthorities,
		ctLogs:     tr.CTLogs,
		ctVerifier: ctlog.NewVerifier(tr.CTLogs),
		sctQuorum:  1,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.sctQuorum < 1 {
		return nil, fmt.Errorf("SCT quorum must be at least 1, got %d", f.sctQuorum)
	}
	if f.identity != nil {
		if err := f.identity.validate(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// VerifySigningCertificate verifies the untrusted certificate path: PKIX
// chain validation against the trusted CAs, then the embedded-SCT check
// over the resulting full chain.
func (f *FulcioVerifier) VerifySigningCertificate(signingCertificate certpath.CertPath) error {
	fullCertPath, err := f.ValidateCertPath(signingCertificate)
	if err != nil {
		return err
	}
	if err := f.verifyEmbeddedSCTs(fullCertPath); err != nil {
		return err
	}
	if f.identity != nil {
		leaf, err := fullCertPath.Leaf()
		if err != nil {
			return err
		}
		if err := f.identity.check(leaf); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCertPath builds and PKIX-validates a full chain from the
// untrusted input and the trusted CAs, returning the full chain on
// success. Validation is pinned to the leaf's NotBefore: Fulcio leaves are
// valid for minutes, so validating at "now" would reject legitimately
// issued certificates. Revocation checking is not performed; Fulcio
// publishes no CRL/OCSP, the short validity is the control.
func (f *FulcioVerifier) ValidateCertPath(signingCertificate certpath.CertPath) (certpath.CertPath, error) {
	leaf, err := signingCertificate.Leaf()
	if err != nil {
		return nil, err
	}

	candidates := trustroot.FindCertificateAuthorities(f.cas, leaf.NotBefore)
	if len(candidates) == 0 {
		return nil, internal.NewVerificationError(internal.KindCertificateAuthority,
			"No valid Certificate Authorities found when validating certificate")
	}

	selfSigned := signingCertificate.IsSelfSigned()
	var failures []caFailure
	for _, ca := range candidates {
		var fullCertPath certpath.CertPath
		if selfSigned {
			// The input already includes its root; it must be one of ours.
			if !signingCertificate.ContainsParent(ca.CertPath) {
				failures = append(failures, caFailure{uri: ca.URI, reason: "Trusted root in chain does not match"})
				continue
			}
			fullCertPath = signingCertificate
		} else {
			fullCertPath = certpath.Append(ca.CertPath, signingCertificate)
		}

		if err := validatePKIX(leaf, fullCertPath, ca); err != nil {
			failures = append(failures, caFailure{uri: ca.URI, reason: err.Error()})
			continue
		}
		logrus.Debugf("Certificate chain validated against CA %s", ca.URI)
		return fullCertPath, nil
	}

	return nil, internal.NewVerificationError(internal.KindCertificateAuthority, formatCAFailures(failures))
}

// TrimTrustedParent removes the matching trusted CA chain suffix from the
// input path, leaving just the leaf-ward portion. Intended for callers that
// receive a full chain from a signing service but store only the part the
// service did not already know.
func (f *FulcioVerifier) TrimTrustedParent(signingCertificate certpath.CertPath) (certpath.CertPath, error) {
	for _, ca := range f.cas {
		if signingCertificate.ContainsParent(ca.CertPath) {
			return signingCertificate.TrimParent(ca.CertPath)
		}
	}
	return nil, internal.NewVerificationError(internal.KindTrustRoot,
		"Certificate does not chain to trusted roots")
}

type caFailure struct {
	uri    string
	reason string
}

func formatCAFailures(failures []caFailure) string {
	var b strings.Builder
	b.WriteString("Certificate was not verifiable against CAs")
	for _, f := range failures {
		b.WriteString("\n")
		b.WriteString(f.uri)
		b.WriteString(": ")
		b.WriteString(f.reason)
	}
	return b.String()
}

// validatePKIX runs PKIX path validation of leaf against the single trust
// anchor of ca, with the validation time pinned to the leaf's NotBefore.
func validatePKIX(leaf *x509.Certificate, fullCertPath certpath.CertPath, ca *trustroot.CertificateAuthority) error {
	roots := x509.NewCertPool()
	roots.AddCert(ca.TrustAnchor())
	intermediates := x509.NewCertPool()
	for _, cert := range fullCertPath[1:] {
		intermediates.AddCert(cert)
	}

	// Fulcio certificates carry a critical SAN with an OtherName element,
	// which the standard library does not parse; keep it from failing the
	// whole validation. Everything else unrecognized still fails. Verify a
	// copy so the caller's certificate stays untouched and concurrent
	// verifications of the same certificate stay safe.
	leafCopy := *leaf
	leafCopy.UnhandledCriticalExtensions = withoutSANExtension(leaf.UnhandledCriticalExtensions)

	_, err := leafCopy.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   leaf.NotBefore,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	return err
}

// verifyEmbeddedSCTs checks that the leaf of fullCertPath carries at least
// sctQuorum embedded SCTs that are both cryptographically valid and issued
// by a configured log inside that log's validity window at the SCT's own
// timestamp. A log that was outside its window when the SCT was produced is
// not acceptable even when the signature verifies.
func (f *FulcioVerifier) verifyEmbeddedSCTs(fullCertPath certpath.CertPath) error {
	if len(f.ctLogs) == 0 {
		return internal.NewVerificationError(internal.KindSCT, "No ct logs were provided to verifier")
	}

	leaf, err := fullCertPath.Leaf()
	if err != nil {
		return err
	}
	if _, present, err := certpath.EmbeddedSCTList(leaf); err != nil {
		return internal.NewVerificationError(internal.KindSCT, err.Error())
	} else if !present {
		return internal.NewVerificationError(internal.KindSCT, "No valid SCTs were found during verification")
	}

	result, err := f.ctVerifier.VerifySignedCertificateTimestamps(fullCertPath)
	if err != nil {
		return internal.NewVerificationError(internal.KindSCT, err.Error())
	}

	accepted := 0
	for _, sct := range result.ValidSCTs {
		entryTime := ct.TimestampToTime(sct.Timestamp)
		if log := trustroot.FindTransparencyLog(f.ctLogs, sct.LogID.KeyID[:], entryTime); log != nil {
			logrus.Debugf("Accepting SCT from log %s at %s", log.BaseURL, entryTime)
			accepted++
			if accepted >= f.sctQuorum {
				return nil
			}
		} else {
			logrus.Debugf("SCT signature verified, but log %x is not trusted at %s", sct.LogID.KeyID, entryTime)
		}
	}

	return internal.NewVerificationError(internal.KindSCT,
		fmt.Sprintf("No valid SCTs were found, all(%d) SCTs were invalid", result.Count()))
}
