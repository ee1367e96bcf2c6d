// Package errors provides domain-specific error types for tawqa.
//
// Every failure the connection engine can hit is one of four families
// (resolution, socket, I/O, bridge), each carrying a Kind plus the
// operation and address involved.  The supervisor reports all of them
// through a single funnel, so the types focus on producing a good
// one-line diagnostic and exposing the underlying system error.
package errors

import (
	"errors"
	"fmt"

	"github.com/rbmk-project/common/errclass"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrInterrupted = errors.New("interrupted")
	ErrNoPort      = errors.New("no port given")
	ErrNoOpenPorts = errors.New("no open ports found")
)

// ── Resolution ───────────────────────────────────────────────────────

// ResolutionKind enumerates why a host or port could not be resolved.
type ResolutionKind int

const (
	NotNumeric ResolutionKind = iota + 1
	LookupFailed
	InvalidPort
)

func (k ResolutionKind) String() string {
	switch k {
	case NotNumeric:
		return "not numeric"
	case LookupFailed:
		return "lookup failed"
	case InvalidPort:
		return "invalid port"
	}
	return "unknown"
}

// ResolutionError represents a failed host or service lookup.
type ResolutionError struct {
	Kind ResolutionKind
	Name string // the host or port string that failed
	Port bool   // true when Name is a port/service
	Err  error  // underlying resolver error, if any
}

func (e *ResolutionError) Error() string {
	var s string
	switch {
	case e.Kind == NotNumeric && e.Port:
		s = fmt.Sprintf("can't parse %s as a port number", e.Name)
	case e.Kind == NotNumeric:
		s = fmt.Sprintf("can't parse %s as an IP address", e.Name)
	case e.Kind == LookupFailed && e.Port:
		s = fmt.Sprintf("%s: unknown service", e.Name)
	case e.Kind == LookupFailed:
		s = fmt.Sprintf("%s: forward host lookup failed", e.Name)
	case e.Kind == InvalidPort:
		s = fmt.Sprintf("invalid port %s", e.Name)
	default:
		s = fmt.Sprintf("%s: %s", e.Name, e.Kind)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ── Socket ───────────────────────────────────────────────────────────

// SocketKind enumerates socket-establishment failures.
type SocketKind int

const (
	CreateFailed SocketKind = iota + 1
	BindFailed
	ConnectFailed
	ListenFailed
	AcceptFailed
	Timeout
)

func (k SocketKind) String() string {
	switch k {
	case CreateFailed:
		return "can't get socket"
	case BindFailed:
		return "can't bind to"
	case ConnectFailed:
		return "can't connect to"
	case ListenFailed:
		return "listen failed on"
	case AcceptFailed:
		return "accept failed on"
	case Timeout:
		return "timed out on"
	}
	return "socket error on"
}

// SocketError represents a failure creating, binding, connecting,
// listening or accepting.
type SocketError struct {
	Kind SocketKind
	Addr string // address:port involved, if known
	Err  error
}

func (e *SocketError) Error() string {
	s := e.Kind.String()
	if e.Addr != "" {
		s += " " + e.Addr
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *SocketError) Unwrap() error { return e.Err }

// ── I/O ──────────────────────────────────────────────────────────────

// IOKind enumerates relay-time failures.
type IOKind int

const (
	ReadFailed IOKind = iota + 1
	WriteFailed
	PeerClosed
)

func (k IOKind) String() string {
	switch k {
	case ReadFailed:
		return "read"
	case WriteFailed:
		return "write"
	case PeerClosed:
		return "peer closed"
	}
	return "io"
}

// IOError represents a failure while relaying bytes.
type IOError struct {
	Kind IOKind
	Op   string // "net", "stdin", "stdout", "shell"
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ── Bridge ───────────────────────────────────────────────────────────

// BridgeKind enumerates shell-bridge failures.
type BridgeKind int

const (
	SpawnFailed BridgeKind = iota + 1
	FeatureDisabled
)

// BridgeError represents a failure to hand the connection to a command.
type BridgeError struct {
	Kind BridgeKind
	Path string
	Err  error
}

func (e *BridgeError) Error() string {
	switch e.Kind {
	case FeatureDisabled:
		return "exec support not compiled in"
	case SpawnFailed:
		if e.Err != nil {
			return fmt.Sprintf("exec %s failed: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("exec %s failed", e.Path)
	}
	return "bridge error"
}

func (e *BridgeError) Unwrap() error { return e.Err }

// ── Config ───────────────────────────────────────────────────────────

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Classification helpers ───────────────────────────────────────────

// Class maps err to a Unix-like error class such as "ECONNREFUSED" or
// "ETIMEDOUT".  Errors the classifier does not recognise map to
// "EGENERIC"; nil maps to "".
func Class(err error) string {
	return errclass.New(err)
}

// IsBridgeDisabled reports whether err means exec support is absent
// from this build.
func IsBridgeDisabled(err error) bool {
	var be *BridgeError
	return errors.As(err, &be) && be.Kind == FeatureDisabled
}

// IsTimeout reports whether err is a SocketError of kind Timeout.
func IsTimeout(err error) bool {
	var se *SocketError
	return errors.As(err, &se) && se.Kind == Timeout
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
