package obs

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error codes for the taxonomy this system propagates: ConfigError,
// IoError, CodecError, ProtocolError, ResourceError.
const (
	CodeConfig   = "CONFIG_ERROR"
	CodeIO       = "IO_ERROR"
	CodeCodec    = "CODEC_ERROR"
	CodeProtocol = "PROTOCOL_ERROR"
	CodeResource = "RESOURCE_ERROR"
)

// KarlError carries the component/operation/code context every
// propagated error in this system is expected to attach.
type KarlError struct {
	Err       error
	Code      string
	Component string
	Op        string
	File      string
	Line      int
}

// NewError creates a KarlError with the caller's file/line attached.
func NewError(err error, code, component, op string) *KarlError {
	_, file, line, _ := runtime.Caller(1)
	parts := strings.Split(file, "/")
	return &KarlError{
		Err:       err,
		Code:      code,
		Component: component,
		Op:        op,
		File:      parts[len(parts)-1],
		Line:      line,
	}
}

func (e *KarlError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s in %s", e.Code, e.Op, e.Component)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %s", e.Err.Error())
	}
	if e.File != "" && e.Line > 0 {
		fmt.Fprintf(&sb, " (%s:%d)", e.File, e.Line)
	}
	return sb.String()
}

func (e *KarlError) Unwrap() error { return e.Err }

// Is matches another KarlError by Code, or delegates to the wrapped error.
func (e *KarlError) Is(target error) bool {
	var karlErr *KarlError
	if errors.As(target, &karlErr) {
		return e.Code == karlErr.Code
	}
	return errors.Is(e.Err, target)
}

// CodeOf extracts the taxonomy code from err, or "" if err isn't a KarlError.
func CodeOf(err error) string {
	var karlErr *KarlError
	if errors.As(err, &karlErr) {
		return karlErr.Code
	}
	return ""
}
