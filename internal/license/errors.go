package license

// Error is a caller-facing license outcome. Every value is recoverable;
// transports map Code to a response.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Error codes surfaced at the transport boundary.
const (
	CodeInvalidCount        = "INVALID_COUNT"
	CodeInvalidDuration     = "INVALID_DURATION"
	CodeDuplicateKey        = "DUPLICATE_KEY"
	CodeNotFound            = "NOT_FOUND"
	CodeMissingKey          = "MISSING_KEY"
	CodeMissingOwner        = "MISSING_OWNER"
	CodeInvalidKey          = "INVALID_KEY"
	CodeNotActivated        = "NOT_ACTIVATED"
	CodeExpired             = "EXPIRED"
	CodeFingerprintMismatch = "FINGERPRINT_MISMATCH"
	CodeAlreadyActivated    = "ALREADY_ACTIVATED"
	CodeOwnerAlreadyBound   = "OWNER_ALREADY_BOUND"
	CodePayloadUnavailable  = "PAYLOAD_UNAVAILABLE"
)

var (
	ErrInvalidCount        = &Error{Code: CodeInvalidCount, Message: "invalid key count"}
	ErrInvalidDuration     = &Error{Code: CodeInvalidDuration, Message: "invalid duration"}
	ErrDuplicateKey        = &Error{Code: CodeDuplicateKey, Message: "key already exists"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "key not found"}
	ErrMissingKey          = &Error{Code: CodeMissingKey, Message: "no key provided"}
	ErrMissingOwner        = &Error{Code: CodeMissingOwner, Message: "no owner provided"}
	ErrInvalidKey          = &Error{Code: CodeInvalidKey, Message: "invalid key"}
	ErrNotActivated        = &Error{Code: CodeNotActivated, Message: "key not activated"}
	ErrExpired             = &Error{Code: CodeExpired, Message: "key expired"}
	ErrFingerprintMismatch = &Error{Code: CodeFingerprintMismatch, Message: "HWID mismatch"}
	ErrAlreadyActivated    = &Error{Code: CodeAlreadyActivated, Message: "key already activated"}
	ErrOwnerAlreadyBound   = &Error{Code: CodeOwnerAlreadyBound, Message: "owner already has an active key"}
	ErrPayloadUnavailable  = &Error{Code: CodePayloadUnavailable, Message: "failed to load payload"}
)
