// Package pki builds certificate fixtures for tests: root CAs,
// intermediates, and leaves carrying embedded SCTs signed by a test
// transparency log key.
package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
	"time"

	"github.com/containers/fulcio-verify/certpath"
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/stretchr/testify/require"
)

// CA is a test certificate authority.
type CA struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate
}

// NewRootCA generates a self-signed root.
func NewRootCA(t *testing.T, commonName string, notBefore, notAfter time.Time) *CA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial, err := cryptoutils.GenerateSerialNumber()
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &CA{Key: key, Cert: cert}
}

// NewIntermediateCA generates an intermediate signed by parent.
func NewIntermediateCA(t *testing.T, parent *CA, commonName string, notBefore, notAfter time.Time) *CA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial, err := cryptoutils.GenerateSerialNumber()
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent.Cert, key.Public(), parent.Key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &CA{Key: key, Cert: cert}
}

// CTLog is a test transparency log key pair.
type CTLog struct {
	Key *ecdsa.PrivateKey
}

// NewCTLog generates a P-256 log key.
func NewCTLog(t *testing.T) *CTLog {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &CTLog{Key: key}
}

// PublicKey returns the log's verification key.
func (l *CTLog) PublicKey() crypto.PublicKey {
	return l.Key.Public()
}

// LeafSpec describes the leaf certificate to issue.
type LeafSpec struct {
	CommonName      string
	NotBefore       time.Time
	NotAfter        time.Time
	EmailAddresses  []string
	ExtraExtensions []pkix.Extension
	// SCTLog, if set, embeds an SCT signed by this log.
	SCTLog *CTLog
	// SCTTime is the SCT timestamp; defaults to NotBefore when zero.
	SCTTime time.Time
}

// IssueLeaf issues an end-entity certificate from ca per spec. When an SCT
// log is configured, the embedded SCT's signature covers the leaf's TBS
// with the SCT-list extension stripped, per RFC 6962 §3.2, so the returned
// certificate verifies with a real CT verifier.
func IssueLeaf(t *testing.T, ca *CA, spec LeafSpec) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial, err := cryptoutils.GenerateSerialNumber()
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:   serial,
		Subject:        pkix.Name{CommonName: spec.CommonName},
		NotBefore:      spec.NotBefore,
		NotAfter:       spec.NotAfter,
		EmailAddresses: spec.EmailAddresses,
		KeyUsage:       x509.KeyUsageDigitalSignature,
		ExtKeyUsage:    []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	template.ExtraExtensions = append(template.ExtraExtensions, spec.ExtraExtensions...)

	if spec.SCTLog == nil {
		return createLeaf(t, ca, template, key), key
	}

	sctTime := spec.SCTTime
	if sctTime.IsZero() {
		sctTime = spec.NotBefore
	}
	timestamp := uint64(sctTime.UnixMilli())

	// The SCT signature input is independent of the extension's own value:
	// reconstruction strips the whole extension. Issue a twin certificate
	// with a placeholder value to obtain the exact TBS bytes to sign.
	placeholder, err := asn1.Marshal([]byte{0})
	require.NoError(t, err)
	twinTemplate := *template
	twinTemplate.ExtraExtensions = append(append([]pkix.Extension{}, template.ExtraExtensions...),
		pkix.Extension{Id: certpath.OIDEmbeddedSCTList, Value: placeholder})
	twin := createLeaf(t, ca, &twinTemplate, key)

	sct := signSCT(t, spec.SCTLog, twin, ca.Cert, timestamp)
	sctBytes, err := tls.Marshal(*sct)
	require.NoError(t, err)
	listBytes, err := tls.Marshal(ctx509.SignedCertificateTimestampList{SCTList: []ctx509.SerializedSCT{{Val: sctBytes}}})
	require.NoError(t, err)
	extValue, err := asn1.Marshal(listBytes)
	require.NoError(t, err)

	template.ExtraExtensions = append(template.ExtraExtensions,
		pkix.Extension{Id: certpath.OIDEmbeddedSCTList, Value: extValue})
	return createLeaf(t, ca, template, key), key
}

func createLeaf(t *testing.T, ca *CA, template *x509.Certificate, key *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, template, ca.Cert, key.Public(), ca.Key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func signSCT(t *testing.T, log *CTLog, leaf, issuer *x509.Certificate, timestamp uint64) *ct.SignedCertificateTimestamp {
	t.Helper()
	ctLeaf, err := ctx509.ParseCertificate(leaf.Raw)
	if err != nil && ctx509.IsFatal(err) {
		t.Fatalf("parsing leaf: %v", err)
	}
	ctIssuer, err := ctx509.ParseCertificate(issuer.Raw)
	if err != nil && ctx509.IsFatal(err) {
		t.Fatalf("parsing issuer: %v", err)
	}
	merkleLeaf, err := ct.MerkleTreeLeafForEmbeddedSCT([]*ctx509.Certificate{ctLeaf, ctIssuer}, timestamp)
	require.NoError(t, err)

	sctInput := ct.SignedCertificateTimestamp{
		SCTVersion: ct.V1,
		Timestamp:  timestamp,
	}
	data, err := ct.SerializeSCTSignatureInput(sctInput, ct.LogEntry{Leaf: *merkleLeaf})
	require.NoError(t, err)
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, log.Key, digest[:])
	require.NoError(t, err)

	spki, err := x509.MarshalPKIXPublicKey(log.Key.Public())
	require.NoError(t, err)

	return &ct.SignedCertificateTimestamp{
		SCTVersion: ct.V1,
		LogID:      ct.LogID{KeyID: sha256.Sum256(spki)},
		Timestamp:  timestamp,
		Signature: ct.DigitallySigned{
			Algorithm: tls.SignatureAndHashAlgorithm{
				Hash:      tls.SHA256,
				Signature: tls.SignatureAlgorithmFromPubKey(log.Key.Public()),
			},
			Signature: sig,
		},
	}
}
