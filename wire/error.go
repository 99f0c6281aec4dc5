package wire

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of encoding or framing error.
type ErrorCode int

// These constants are used to identify a specific MessageError.
const (
	// ErrUnknownMagicValue indicates the first four bytes of a frame do
	// not match the magic value of any known network.
	ErrUnknownMagicValue ErrorCode = iota

	// ErrCommandNameUnknown indicates the command field of a frame does not
	// name the payload the caller expected.
	ErrCommandNameUnknown

	// ErrPayloadTooBig indicates a payload, either being encoded or
	// claimed by the length field of a received frame, exceeds
	// MaxPayloadSize.
	ErrPayloadTooBig

	// ErrChecksumInvalid indicates the checksum field of a frame does not
	// match the checksum of its payload.
	ErrChecksumInvalid

	// ErrInvalidEncoding indicates a payload body could not be decoded:
	// truncated input, an out of range enumerant, invalid UTF-8 or
	// trailing bytes where none are allowed.
	ErrInvalidEncoding

	// ErrUserAgentTooLong indicates a user agent does not fit in its one
	// byte length prefix.
	ErrUserAgentTooLong
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknownMagicValue:  "ErrUnknownMagicValue",
	ErrCommandNameUnknown: "ErrCommandNameUnknown",
	ErrPayloadTooBig:      "ErrPayloadTooBig",
	ErrChecksumInvalid:    "ErrChecksumInvalid",
	ErrInvalidEncoding:    "ErrInvalidEncoding",
	ErrUserAgentTooLong:   "ErrUserAgentTooLong",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// MessageError describes an issue with a message.  An example of some
// potential issues are messages from the wrong bitcoin network, invalid
// commands, mismatched checksums, and exceeding max payloads.
//
// This provides a mechanism for the caller to type assert the error to
// differentiate between general io errors such as io.EOF and issues that
// resulted from malformed messages.
type MessageError struct {
	Func        string    // Function name
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying cause, if any
}

// Error satisfies the error interface and prints human-readable errors.
func (e *MessageError) Error() string {
	var s string
	if e.Func != "" {
		s = e.Func + ": "
	}
	s += e.Description
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause of the error.
func (e *MessageError) Unwrap() error {
	return e.Err
}

// messageError creates an error for the given function and description.
func messageError(f string, c ErrorCode, desc string) *MessageError {
	return &MessageError{Func: f, ErrorCode: c, Description: desc}
}

// encodingError wraps a read that ended before the frame or payload did.
func encodingError(f string, desc string, err error) *MessageError {
	return &MessageError{Func: f, ErrorCode: ErrInvalidEncoding,
		Description: desc, Err: err}
}

// IsErrorCode returns whether err is, or wraps, a MessageError with the
// given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var mErr *MessageError
	return errors.As(err, &mErr) && mErr.ErrorCode == c
}
