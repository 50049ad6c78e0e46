package verify

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/containers/fulcio-verify/verify/internal"
	"github.com/sigstore/fulcio/pkg/certificate"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"golang.org/x/exp/slices"
)

// identityPolicy restricts accepted leaves to a single OIDC issuer and
// subject email.
type identityPolicy struct {
	oidcIssuer   string
	subjectEmail string
}

func (p *identityPolicy) validate() error {
	if p.oidcIssuer == "" {
		return errors.New("identity policy requires an OIDC issuer")
	}
	if p.subjectEmail == "" {
		return errors.New("identity policy requires a subject email")
	}
	return nil
}

func (p *identityPolicy) check(leaf *x509.Certificate) error {
	issuer, err := fulcioIssuerInCertificate(leaf)
	if err != nil {
		return internal.NewVerificationError(internal.KindIdentity, err.Error())
	}
	if issuer != p.oidcIssuer {
		return internal.NewVerificationError(internal.KindIdentity,
			fmt.Sprintf("Unexpected Fulcio OIDC issuer %q", issuer))
	}
	if !slices.Contains(leaf.EmailAddresses, p.subjectEmail) {
		return internal.NewVerificationError(internal.KindIdentity,
			fmt.Sprintf("Required email %s not found (got %q)", p.subjectEmail, leaf.EmailAddresses))
	}
	return nil
}

// fulcioIssuerInCertificate returns the OIDC issuer recorded in cert.
// Fulcio has recorded the issuer in two extensions over time; we accept
// either, and both if they are consistent.
func fulcioIssuerInCertificate(cert *x509.Certificate) (string, error) {
	var issuerV1, issuerV2 string
	haveIssuerV1, haveIssuerV2 := false, false
	// The certificate parser rejects duplicate extensions since Go 1.19, but
	// stay independent of that behavior.
	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(certificate.OIDIssuer): //nolint:staticcheck // Deprecated, but we must continue to accept it.
			if haveIssuerV1 {
				return "", errors.New("duplicate OIDC issuer extension")
			}
			issuerV1 = string(ext.Value)
			haveIssuerV1 = true
		case ext.Id.Equal(certificate.OIDIssuerV2):
			if haveIssuerV2 {
				return "", errors.New("duplicate OIDC issuer v2 extension")
			}
			rest, err := asn1.UnmarshalWithParams(ext.Value, &issuerV2, "utf8")
			if err != nil {
				return "", fmt.Errorf("invalid ASN.1 in OIDC issuer v2 extension: %w", err)
			}
			if len(rest) != 0 {
				return "", errors.New("invalid ASN.1 in OIDC issuer v2 extension, trailing data")
			}
			haveIssuerV2 = true
		}
	}
	switch {
	case haveIssuerV1 && haveIssuerV2:
		if issuerV1 != issuerV2 {
			return "", errors.New("inconsistent OIDC issuer extension values")
		}
		return issuerV2, nil
	case haveIssuerV1:
		return issuerV1, nil
	case haveIssuerV2:
		return issuerV2, nil
	default:
		return "", errors.New("Fulcio certificate is missing the issuer extension")
	}
}

// withoutSANExtension returns oids with the subjectAltName OID removed.
// Fulcio records identities in an OtherName SAN element; the standard
// library does not parse those and would otherwise reject the certificate
// outright.
func withoutSANExtension(oids []asn1.ObjectIdentifier) []asn1.ObjectIdentifier {
	return slices.DeleteFunc(slices.Clone(oids), func(oid asn1.ObjectIdentifier) bool {
		return oid.Equal(cryptoutils.SANOID)
	})
}
