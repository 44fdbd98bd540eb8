package privacy

// SanitizedError keeps the original error for errors.Is and errors.As while
// Error returns the scrubbed message.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs err's message with ScrubMessage. It returns nil for a nil error.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
