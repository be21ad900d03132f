package ingest

import "errors"

// ErrorKind classifies a parse failure. Kinds are stable identifiers used
// for metrics and dispatch; the human-facing text lives on the Error itself.
type ErrorKind string

const (
	KindUnsupportedFormat       ErrorKind = "unsupported_format"
	KindMagicByteMismatch       ErrorKind = "magic_byte_mismatch"
	KindSecurityViolation       ErrorKind = "security_violation"
	KindEncodingExhausted       ErrorKind = "encoding_exhausted"
	KindFormatMarkerMissing     ErrorKind = "format_marker_missing"
	KindStructuralParseFailure  ErrorKind = "structural_parse_failure"
	KindNoDataExtracted         ErrorKind = "no_data_extracted"
	KindLowConfidenceExtraction ErrorKind = "low_confidence_extraction"
	KindPageLimitExceeded       ErrorKind = "page_limit_exceeded"
)

// Error is the failure value every parser raises. Remediation is written for
// the person who uploaded the file, not for a developer, and is always set.
type Error struct {
	Kind        ErrorKind
	Message     string
	Remediation string
}

func (e *Error) Error() string {
	if e.Remediation == "" {
		return e.Message
	}
	return e.Message + ": " + e.Remediation
}

// NewError builds a parse error with its user-facing remediation text.
func NewError(kind ErrorKind, message, remediation string) *Error {
	return &Error{Kind: kind, Message: message, Remediation: remediation}
}

// KindOf extracts the error kind from err, or "" when err is not an
// ingestion error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an ingestion error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
