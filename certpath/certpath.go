// Package certpath manipulates ordered X.509 certificate chains.
//
// A CertPath is ordered leaf-first: index 0 is the end-entity certificate,
// and each following certificate is the issuer of the one before it. The
// chain ascends toward, but does not necessarily include, a self-signed root.
package certpath

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"slices"
)

// OIDEmbeddedSCTList is the X.509v3 extension carrying embedded Signed
// Certificate Timestamps (RFC 6962 §3.3).
var OIDEmbeddedSCTList = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 4, 2}

// CertPath is a certificate chain, leaf first.
type CertPath []*x509.Certificate

// ParseDER parses a sequence of DER-encoded certificates into a CertPath,
// preserving input order.
func ParseDER(ders [][]byte) (CertPath, error) {
	path := make(CertPath, 0, len(ders))
	for i, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate %d: %w", i, err)
		}
		path = append(path, cert)
	}
	return path, nil
}

// Leaf returns the end-entity certificate of the path.
func (path CertPath) Leaf() (*x509.Certificate, error) {
	if len(path) == 0 {
		return nil, errors.New("certificate path is empty")
	}
	return path[0], nil
}

// IsSelfSigned reports whether the path terminates in a self-signed
// certificate: the tail's subject equals its issuer and its signature
// verifies against its own public key.
func (path CertPath) IsSelfSigned() bool {
	if len(path) == 0 {
		return false
	}
	tail := path[len(path)-1]
	return isSelfSigned(tail)
}

func isSelfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawSubject, cert.RawIssuer) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// ContainsParent reports whether parent is a contiguous suffix of path.
// Certificates are compared by their DER encoding; comparing re-parsed
// objects for semantic equality would silently miss encoding differences.
func (path CertPath) ContainsParent(parent CertPath) bool {
	if len(parent) == 0 || len(parent) > len(path) {
		return false
	}
	offset := len(path) - len(parent)
	for i, parentCert := range parent {
		if !bytes.Equal(path[offset+i].Raw, parentCert.Raw) {
			return false
		}
	}
	return true
}

// TrimParent returns path with the parent suffix removed. The caller must
// have established the suffix relationship with ContainsParent first.
func (path CertPath) TrimParent(parent CertPath) (CertPath, error) {
	if !path.ContainsParent(parent) {
		return nil, errors.New("parent path is not a suffix of the certificate path")
	}
	return slices.Clone(path[:len(path)-len(parent)]), nil
}

// Append concatenates child and parent into a single path, child first.
func Append(parent, child CertPath) CertPath {
	full := make(CertPath, 0, len(child)+len(parent))
	full = append(full, child...)
	full = append(full, parent...)
	return full
}

// EmbeddedSCTList returns the TLS-encoded SignedCertificateTimestampList
// embedded in leaf, unwrapped from its DER OCTET STRING, together with true.
// It returns (nil, false, nil) if the certificate does not carry the
// extension, and (nil, true, err) if the extension is malformed.
func EmbeddedSCTList(leaf *x509.Certificate) ([]byte, bool, error) {
	for _, ext := range leaf.Extensions {
		if !ext.Id.Equal(OIDEmbeddedSCTList) {
			continue
		}
		var list []byte
		rest, err := asn1.Unmarshal(ext.Value, &list)
		if err != nil {
			return nil, true, fmt.Errorf("invalid ASN.1 in embedded SCT extension: %w", err)
		}
		if len(rest) != 0 {
			return nil, true, errors.New("invalid ASN.1 in embedded SCT extension, trailing data")
		}
		return list, true, nil
	}
	return nil, false, nil
}
