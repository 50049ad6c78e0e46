package trustroot

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/containers/fulcio-verify/certpath"
	"github.com/containers/fulcio-verify/internal/testing/pki"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowContains(t *testing.T) {
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	bounded := Window{Start: start, End: end}
	assert.False(t, bounded.Contains(start.Add(-time.Second)))
	assert.True(t, bounded.Contains(start))
	assert.True(t, bounded.Contains(start.Add(time.Hour)))
	// The interval is half-open; the end instant is excluded.
	assert.False(t, bounded.Contains(end))
	assert.False(t, bounded.Contains(end.Add(time.Hour)))

	open := Window{Start: start}
	assert.True(t, open.Contains(start.Add(100*365*24*time.Hour)))
	assert.False(t, open.Contains(start.Add(-time.Second)))
}

func TestNewCertificateAuthority(t *testing.T) {
	now := time.Now()
	root := pki.NewRootCA(t, "root CA", now.Add(-time.Hour), now.Add(time.Hour))
	intermediate := pki.NewIntermediateCA(t, root, "intermediate CA", now.Add(-time.Hour), now.Add(time.Hour))

	ca, err := NewCertificateAuthority(certpath.CertPath{intermediate.Cert, root.Cert}, "https://ca.example.com", Window{Start: now.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, root.Cert, ca.TrustAnchor())

	// The chain must terminate in a self-signed root; failures surface at
	// construction, not at verify time.
	_, err = NewCertificateAuthority(certpath.CertPath{intermediate.Cert}, "https://ca.example.com", Window{})
	assert.Error(t, err)
	_, err = NewCertificateAuthority(certpath.CertPath{}, "https://ca.example.com", Window{})
	assert.Error(t, err)
}

func TestFindCertificateAuthorities(t *testing.T) {
	now := time.Now()
	mkCA := func(uri string, w Window) *CertificateAuthority {
		root := pki.NewRootCA(t, uri, now.Add(-24*time.Hour), now.Add(24*time.Hour))
		ca, err := NewCertificateAuthority(certpath.CertPath{root.Cert}, uri, w)
		require.NoError(t, err)
		return ca
	}
	older := mkCA("https://older.example.com", Window{Start: now.Add(-2 * time.Hour), End: now.Add(-time.Hour)})
	current := mkCA("https://current.example.com", Window{Start: now.Add(-time.Hour)})
	alsoCurrent := mkCA("https://also-current.example.com", Window{Start: now.Add(-time.Hour)})
	cas := []*CertificateAuthority{older, current, alsoCurrent}

	found := FindCertificateAuthorities(cas, now)
	require.Len(t, found, 2)
	// Input order is preserved for deterministic error reporting.
	assert.Equal(t, current, found[0])
	assert.Equal(t, alsoCurrent, found[1])

	assert.Len(t, FindCertificateAuthorities(cas, now.Add(-90*time.Minute)), 1)
	assert.Empty(t, FindCertificateAuthorities(cas, now.Add(-3*time.Hour)))
}

func TestNewTransparencyLog(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	log, err := NewTransparencyLog(key.Public(), "https://log.example.com", Window{})
	require.NoError(t, err)

	spki, err := x509.MarshalPKIXPublicKey(key.Public())
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256(spki), log.LogID)

	_, err = NewTransparencyLog(nil, "https://log.example.com", Window{})
	assert.Error(t, err)
}

func TestFindTransparencyLog(t *testing.T) {
	now := time.Now()
	mkLog := func(url string, w Window) *TransparencyLog {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		log, err := NewTransparencyLog(key.Public(), url, w)
		require.NoError(t, err)
		return log
	}
	expired := mkLog("https://expired.example.com", Window{Start: now.Add(-2 * time.Hour), End: now.Add(-time.Hour)})
	active := mkLog("https://active.example.com", Window{Start: now.Add(-time.Hour)})
	logs := []*TransparencyLog{expired, active}

	assert.Equal(t, active, FindTransparencyLog(logs, active.LogID[:], now))
	// A matching LogID outside its window does not count.
	assert.Nil(t, FindTransparencyLog(logs, expired.LogID[:], now))
	assert.Equal(t, expired, FindTransparencyLog(logs, expired.LogID[:], now.Add(-90*time.Minute)))
	assert.Nil(t, FindTransparencyLog(logs, make([]byte, LogIDSize), now))
	assert.Nil(t, FindTransparencyLog(logs, []byte{1, 2, 3}, now))
}

func TestNewTrustRootFromYAML(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	root := pki.NewRootCA(t, "root CA", now.Add(-time.Hour), now.Add(time.Hour))
	caPEM, err := cryptoutils.MarshalCertificateToPEM(root.Cert)
	require.NoError(t, err)

	logKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	logPEM, err := cryptoutils.MarshalPublicKeyToPEM(logKey.Public())
	require.NoError(t, err)

	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(caPath, caPEM, 0o600))

	doc := "certificateAuthorities:\n" +
		"  - uri: https://ca.example.com\n" +
		"    certPEMFile: " + caPath + "\n" +
		"    validFor:\n" +
		"      start: " + now.Add(-time.Hour).Format(time.RFC3339) + "\n" +
		"ctLogs:\n" +
		"  - baseURL: https://log.example.com\n" +
		"    publicKeyPEM: |\n" + indent(string(logPEM), "      ") +
		"    validFor:\n" +
		"      start: " + now.Add(-time.Hour).Format(time.RFC3339) + "\n" +
		"      end: " + now.Add(time.Hour).Format(time.RFC3339) + "\n"

	tr, err := NewTrustRootFromYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tr.CertificateAuthorities, 1)
	require.Len(t, tr.CTLogs, 1)
	assert.Equal(t, "https://ca.example.com", tr.CertificateAuthorities[0].URI)
	assert.NotNil(t, tr.CertificateAuthorities[0].TrustAnchor())
	assert.Equal(t, "https://log.example.com", tr.CTLogs[0].BaseURL)
	assert.False(t, tr.CTLogs[0].ValidFor.End.IsZero())

	// Malformed entries fail the whole load.
	_, err = NewTrustRootFromYAML([]byte("certificateAuthorities:\n  - uri: https://ca.example.com\n    certPEM: not a certificate\n"))
	assert.Error(t, err)
	// A trust root without CAs is unusable.
	_, err = NewTrustRootFromYAML([]byte("ctLogs: []\n"))
	assert.Error(t, err)
}

func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
