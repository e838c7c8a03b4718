package usbinfo

import (
	"fmt"
	"strings"
)

// Errors shared by both backends.
var (
	// ErrNoParentHub is returned when a device has no resolvable parent
	// hub in the device tree.
	ErrNoParentHub = fmt.Errorf("failed to find parent hub")

	// ErrNotConnected is returned when a device exists in the tree but
	// its hub port number cannot be determined.
	ErrNotConnected = fmt.Errorf("could not find hub port number")

	// ErrDeviceSuspended is returned when a descriptor request fails in a
	// way that usually means the device is suspended.
	ErrDeviceSuspended = fmt.Errorf("descriptor request failed, device may be suspended")

	// ErrRequestTooLong is returned when a descriptor request exceeds the
	// maximum length the OS will accept.
	ErrRequestTooLong = fmt.Errorf("descriptor request length exceeds maximum")
)

// AttrErrorKind classifies an AttrError.
type AttrErrorKind int

const (
	// AttrErrorIO means the attribute file could not be read.
	AttrErrorIO AttrErrorKind = iota
	// AttrErrorParse means the attribute contents did not match the
	// expected grammar.
	AttrErrorParse
)

// AttrError reports a failure to read or parse one sysfs attribute.
type AttrError struct {
	Path string        // full path of the attribute file
	Kind AttrErrorKind // IO or parse
	Err  error         // underlying error for AttrErrorIO
	Raw  string        // original contents for AttrErrorParse
}

func (e *AttrError) Error() string {
	if e.Kind == AttrErrorParse {
		// Raw keeps the file contents verbatim; trim only for display so
		// the trailing newline sysfs appends doesn't end up in the message.
		return fmt.Sprintf("failed to read sysfs attribute %s: couldn't parse value %q", e.Path, strings.TrimSpace(e.Raw))
	}
	return fmt.Sprintf("failed to read sysfs attribute %s: %v", e.Path, e.Err)
}

func (e *AttrError) Unwrap() error { return e.Err }

// OSStatusError carries a raw operating-system status code from a failed
// privileged call.
type OSStatusError struct {
	Code uint32
}

func (e *OSStatusError) Error() string {
	return fmt.Sprintf("system call failed with status %d", e.Code)
}
