package trustroot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/containers/fulcio-verify/certpath"
	"github.com/containers/fulcio-verify/internal/multierr"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"gopkg.in/yaml.v3"
)

// config is the on-disk YAML representation of a TrustRoot.
type config struct {
	CertificateAuthorities []caConfig    `yaml:"certificateAuthorities"`
	CTLogs                 []ctLogConfig `yaml:"ctLogs"`
}

type caConfig struct {
	URI         string       `yaml:"uri"`
	CertPEM     string       `yaml:"certPEM"`
	CertPEMFile string       `yaml:"certPEMFile"`
	ValidFor    windowConfig `yaml:"validFor"`
}

type ctLogConfig struct {
	BaseURL          string       `yaml:"baseURL"`
	PublicKeyPEM     string       `yaml:"publicKeyPEM"`
	PublicKeyPEMFile string       `yaml:"publicKeyPEMFile"`
	ValidFor         windowConfig `yaml:"validFor"`
}

type windowConfig struct {
	Start time.Time  `yaml:"start"`
	End   *time.Time `yaml:"end"`
}

func (w windowConfig) window() Window {
	res := Window{Start: w.Start}
	if w.End != nil {
		res.End = *w.End
	}
	return res
}

// NewTrustRootFromFile loads a TrustRoot from a YAML document at path.
func NewTrustRootFromFile(path string) (*TrustRoot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewTrustRootFromYAML(data)
}

// NewTrustRootFromYAML parses a YAML trust root document. All CAs and CT
// logs are materialized eagerly; any malformed entry fails the whole load.
func NewTrustRootFromYAML(data []byte) (*TrustRoot, error) {
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing trust root: %w", err)
	}

	tr := &TrustRoot{}
	var errs []error
	for i, c := range cfg.CertificateAuthorities {
		ca, err := c.certificateAuthority()
		if err != nil {
			errs = append(errs, fmt.Errorf("certificate authority %d: %w", i, err))
			continue
		}
		tr.CertificateAuthorities = append(tr.CertificateAuthorities, ca)
	}
	for i, c := range cfg.CTLogs {
		log, err := c.transparencyLog()
		if err != nil {
			errs = append(errs, fmt.Errorf("ct log %d: %w", i, err))
			continue
		}
		tr.CTLogs = append(tr.CTLogs, log)
	}
	if errs != nil {
		return nil, multierr.Format("invalid trust root: ", ", ", "", errs)
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return tr, nil
}

func (c caConfig) certificateAuthority() (*CertificateAuthority, error) {
	pemBytes, err := inlineOrFile(c.CertPEM, c.CertPEMFile)
	if err != nil {
		return nil, err
	}
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewCertificateAuthority(certpath.CertPath(certs), c.URI, c.ValidFor.window())
}

func (c ctLogConfig) transparencyLog() (*TransparencyLog, error) {
	pemBytes, err := inlineOrFile(c.PublicKeyPEM, c.PublicKeyPEMFile)
	if err != nil {
		return nil, err
	}
	key, err := cryptoutils.UnmarshalPEMToPublicKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewTransparencyLog(key, c.BaseURL, c.ValidFor.window())
}

func inlineOrFile(inline, file string) ([]byte, error) {
	switch {
	case inline != "" && file != "":
		return nil, errors.New("both an inline PEM value and a PEM file are specified")
	case inline != "":
		return []byte(inline), nil
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, errors.New("no PEM material specified")
	}
}
