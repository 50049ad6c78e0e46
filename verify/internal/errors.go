package internal

// FailureKind classifies what a VerificationError is about. The message,
// not the kind, is the stable API surface; the kind exists so callers can
// branch without string matching.
type FailureKind string

const (
	// KindCertificateAuthority covers chain construction and PKIX failures.
	KindCertificateAuthority FailureKind = "certificate-authority"
	// KindSCT covers missing or unverifiable signed certificate timestamps.
	KindSCT FailureKind = "sct"
	// KindTrustRoot covers inputs that do not relate to the configured trust root.
	KindTrustRoot FailureKind = "trust-root"
	// KindIdentity covers certificate identity policy failures.
	KindIdentity FailureKind = "identity"
)

// VerificationError is returned when a signing certificate or its SCTs fail
// verification. This is publicly visible as verify.VerificationError.
//
// Environment and programmer errors (a malformed trust root, an unusable
// crypto backend) are deliberately not VerificationErrors.
type VerificationError struct {
	kind FailureKind
	msg  string
}

func (err VerificationError) Error() string {
	return err.msg
}

// Kind returns the failure classification.
func (err VerificationError) Kind() FailureKind {
	return err.kind
}

// NewVerificationError returns a new VerificationError with the given
// classification and message.
func NewVerificationError(kind FailureKind, msg string) VerificationError {
	return VerificationError{kind: kind, msg: msg}
}
