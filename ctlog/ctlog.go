// Package ctlog verifies Signed Certificate Timestamps embedded in signing
// certificates against a configured set of certificate transparency logs.
// See RFC 6962 §3.2 and §3.3 for the wire formats involved.
package ctlog

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/containers/fulcio-verify/certpath"
	"github.com/containers/fulcio-verify/trustroot"
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/ctutil"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509util"
	"github.com/sirupsen/logrus"
)

// Result partitions the SCTs of a certificate by whether their signature
// verified against some configured log.
type Result struct {
	ValidSCTs   []*ct.SignedCertificateTimestamp
	InvalidSCTs []*ct.SignedCertificateTimestamp
}

// Count returns the total number of SCTs examined.
func (r *Result) Count() int {
	return len(r.ValidSCTs) + len(r.InvalidSCTs)
}

// Verifier checks embedded SCT signatures against a set of transparency
// logs. A Verifier is immutable and safe for concurrent use.
type Verifier struct {
	logs []*trustroot.TransparencyLog
}

// NewVerifier returns a Verifier trusting the given logs.
func NewVerifier(logs []*trustroot.TransparencyLog) *Verifier {
	return &Verifier{logs: logs}
}

// VerifySignedCertificateTimestamps extracts the SCTs embedded in the leaf
// of path and verifies each one's signature over the reconstructed RFC 6962
// pre-certificate entry: the leaf's TBS with the embedded-SCT extension
// stripped, bound to the SHA-256 of the issuer's SubjectPublicKeyInfo.
//
// The partition is purely cryptographic; validity windows of the logs are
// not consulted here.
func (v *Verifier) VerifySignedCertificateTimestamps(path certpath.CertPath) (*Result, error) {
	leaf, err := path.Leaf()
	if err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, errors.New("certificate path carries no issuer for the leaf")
	}

	// The pre-certificate reconstruction needs the certificate-transparency
	// view of the chain; its parser also tolerates the CT extensions the
	// standard library does not model.
	ctLeaf, err := parseCTCertificate(leaf.Raw)
	if err != nil {
		return nil, fmt.Errorf("parsing leaf certificate: %w", err)
	}
	ctIssuer, err := parseCTCertificate(path[1].Raw)
	if err != nil {
		return nil, fmt.Errorf("parsing issuer certificate: %w", err)
	}
	chain := []*ctx509.Certificate{ctLeaf, ctIssuer}

	scts, err := x509util.ParseSCTsFromCertificate(leaf.Raw)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded SCTs: %w", err)
	}

	res := &Result{}
	for _, sct := range scts {
		if err := v.verifyOne(chain, sct); err != nil {
			logrus.Debugf("Rejecting SCT from log %x: %v", sct.LogID.KeyID, err)
			res.InvalidSCTs = append(res.InvalidSCTs, sct)
			continue
		}
		res.ValidSCTs = append(res.ValidSCTs, sct)
	}
	return res, nil
}

func (v *Verifier) verifyOne(chain []*ctx509.Certificate, sct *ct.SignedCertificateTimestamp) error {
	if sct.SCTVersion != ct.V1 {
		return fmt.Errorf("unsupported SCT version %d", sct.SCTVersion)
	}
	log := v.logByID(sct.LogID.KeyID[:])
	if log == nil {
		return fmt.Errorf("no configured log with ID %x", sct.LogID.KeyID)
	}
	return ctutil.VerifySCT(log.PublicKey, chain, sct, true)
}

// logByID returns the first configured log with a byte-for-byte matching
// LogID, ignoring validity windows.
func (v *Verifier) logByID(logID []byte) *trustroot.TransparencyLog {
	for _, log := range v.logs {
		if bytes.Equal(log.LogID[:], logID) {
			return log
		}
	}
	return nil
}

func parseCTCertificate(der []byte) (*ctx509.Certificate, error) {
	cert, err := ctx509.ParseCertificate(der)
	if err != nil && ctx509.IsFatal(err) {
		return nil, err
	}
	return cert, nil
}
