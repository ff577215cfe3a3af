package tzbaker

import (
	"errors"
	"fmt"
)

// StatusWord is the two byte status returned at the end of every reply.
type StatusWord uint16

const (
	SwOK                      StatusWord = 0x9000
	SwBusy                    StatusWord = 0x9001
	SwDisplayOverflow         StatusWord = 0x6124
	SwInternal                StatusWord = 0x6F00
	SwWrongParam              StatusWord = 0x6B00
	SwWrongLengthForIns       StatusWord = 0x917E
	SwParseError              StatusWord = 0x9405
	SwSecurity                StatusWord = 0x6982
	SwRejected                StatusWord = 0x6985
	SwWrongValues             StatusWord = 0x6A80
	SwReferencedDataNotFound  StatusWord = 0x6A88
	SwInstructionNotSupported StatusWord = 0x6D00
	SwClassNotSupported       StatusWord = 0x6E00
)

// Kind groups errors by how the exchange must treat them.
type Kind int

const (
	KindMalformedRequest Kind = iota + 1
	KindParse
	KindSecurity
	KindEquivocation
	KindUnknownCurve
	KindDisplayOverflow
	KindDerivation
	KindSigning
	KindRejected
	KindBusy
	KindUnsupported
	KindInternal
)

// Error is a categorised failure with the status word reported to the host.
type Error struct {
	Kind    Kind
	Status  StatusWord
	Message string
}

func (e *Error) Error() string {
	return "tzbaker: " + e.Message
}

// Is matches any error of the same kind, so ErrMalformedRequest matches both
// the wrong-parameter and the wrong-length variants.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Status == 0 || e.Status == t.Status)
}

// Sentinel errors - Request structure
var (
	ErrMalformedRequest = &Error{Kind: KindMalformedRequest, Message: "malformed request"}
	ErrWrongParam       = &Error{Kind: KindMalformedRequest, Status: SwWrongParam, Message: "wrong parameter"}
	ErrWrongLength      = &Error{Kind: KindMalformedRequest, Status: SwWrongLengthForIns, Message: "wrong length for instruction"}
	ErrParse            = &Error{Kind: KindParse, Status: SwParseError, Message: "parse error"}
	ErrUnknownIns       = &Error{Kind: KindUnsupported, Status: SwInstructionNotSupported, Message: "instruction not supported"}
	ErrUnknownClass     = &Error{Kind: KindUnsupported, Status: SwClassNotSupported, Message: "class not supported"}
	ErrBusy             = &Error{Kind: KindBusy, Status: SwBusy, Message: "confirmation pending"}
)

// Sentinel errors - Policy
var (
	ErrSecurityViolation = &Error{Kind: KindSecurity, Status: SwSecurity, Message: "security violation"}
	ErrEquivocationRisk  = &Error{Kind: KindEquivocation, Status: SwWrongValues, Message: "high watermark violation"}
	ErrRejected          = &Error{Kind: KindRejected, Status: SwRejected, Message: "rejected by user"}
)

// Sentinel errors - Keys and display
var (
	ErrUnknownCurve      = &Error{Kind: KindUnknownCurve, Status: SwReferencedDataNotFound, Message: "unknown curve"}
	ErrDisplayOverflow   = &Error{Kind: KindDisplayOverflow, Status: SwDisplayOverflow, Message: "screen stack full"}
	ErrDerivationFailure = &Error{Kind: KindDerivation, Status: SwInternal, Message: "key derivation failed"}
	ErrSigningFailure    = &Error{Kind: KindSigning, Status: SwInternal, Message: "signing failed"}
	ErrInternal          = &Error{Kind: KindInternal, Status: SwInternal, Message: "internal error"}
)

var statusErrors = []*Error{
	ErrWrongParam,
	ErrWrongLength,
	ErrParse,
	ErrUnknownIns,
	ErrUnknownClass,
	ErrBusy,
	ErrSecurityViolation,
	ErrEquivocationRisk,
	ErrRejected,
	ErrUnknownCurve,
	ErrDisplayOverflow,
	ErrInternal,
}

// StatusFor maps an error to the status word sent to the host.
// Errors that carry no category are reported as internal faults.
func StatusFor(err error) StatusWord {
	if err == nil {
		return SwOK
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Status != 0 {
			return e.Status
		}
		if e.Kind == KindMalformedRequest {
			return SwWrongLengthForIns
		}
	}
	return SwInternal
}

// ErrorForStatus is the inverse of StatusFor, used on the host side.
func ErrorForStatus(sw StatusWord) error {
	if sw == SwOK {
		return nil
	}
	for _, e := range statusErrors {
		if e.Status == sw {
			return e
		}
	}
	return fmt.Errorf("tzbaker: unexpected status word %04x", uint16(sw))
}
