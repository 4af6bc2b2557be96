package types

import "fmt"

// FaultKind categorizes capability-boundary failures.
type FaultKind string

const (
	FaultDeviceUnavailable      FaultKind = "device_unavailable"
	FaultAlreadyCapturing       FaultKind = "already_capturing"
	FaultInvalidState           FaultKind = "invalid_state"
	FaultRecognitionUnavailable FaultKind = "recognition_unavailable"
	FaultResponderError         FaultKind = "responder_error"
	FaultSynthesisUnavailable   FaultKind = "synthesis_unavailable"
	FaultPlaybackError          FaultKind = "playback_error"
	FaultEmptySample            FaultKind = "empty_sample"
	FaultProcessingError        FaultKind = "processing_error"
)

// Fault is a categorized failure at a capability boundary. Faults degrade to
// content or transient notices at the engine boundary; they never halt the
// session.
type Fault struct {
	Kind    FaultKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// NewFault creates a fault of the given kind.
func NewFault(kind FaultKind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// WrapFault creates a fault wrapping an underlying cause.
func WrapFault(kind FaultKind, message string, cause error) *Fault {
	return &Fault{Kind: kind, Message: message, Cause: cause}
}

// FaultKindOf returns the kind of err if it is (or wraps) a Fault, and ""
// otherwise.
func FaultKindOf(err error) FaultKind {
	if err == nil {
		return ""
	}
	if f, ok := err.(*Fault); ok {
		return f.Kind
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return FaultKindOf(u.Unwrap())
	}
	return ""
}

// IsFault reports whether err is a Fault of the given kind.
func IsFault(err error, kind FaultKind) bool {
	return FaultKindOf(err) == kind
}
