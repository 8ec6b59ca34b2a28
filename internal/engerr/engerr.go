// Package engerr implements the error-kind vocabulary and global error
// channel described in spec.md §7: a thread-local last-error string plus
// a monotonic counter so callers can ask "did any new error occur since
// I last checked?".
//
// Go has no native thread-local storage, and no example repo in the
// reference corpus carries a TLS-emulation library (checked all five
// example go.mods and other_examples/) — this is the standard-library
// justification recorded in DESIGN.md. Goroutine identity is read from
// the runtime stack trace, the same technique net/http and testing use
// internally to recover goroutine ids without an exported API.
package engerr

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Kind enumerates the error kinds of spec.md §7.
type Kind uint8

const (
	BadArguments Kind = iota
	UnknownFormat
	BadMimetype
	OpenError
	ReadError
	WriteError
	FlattenError
	NoExtension
)

func (k Kind) String() string {
	switch k {
	case BadArguments:
		return "bad arguments"
	case UnknownFormat:
		return "unknown format"
	case BadMimetype:
		return "bad mimetype"
	case OpenError:
		return "open error"
	case ReadError:
		return "read error"
	case WriteError:
		return "write error"
	case FlattenError:
		return "flatten error"
	case NoExtension:
		return "no extension"
	default:
		return "unknown error kind"
	}
}

// Error is the error type carrying a Kind alongside a human-readable
// reason (spec.md §7).
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Reason
}

// New constructs an *Error and records it on the global error channel.
func New(kind Kind, reason string) *Error {
	e := &Error{Kind: kind, Reason: reason}
	Record(e.Error())
	return e
}

var (
	mu          sync.RWMutex
	lastByGID   = map[int64]string{}
	errorCount  atomic.Uint64
)

// goroutineID recovers the calling goroutine's id by parsing the first
// line of its own stack trace ("goroutine 123 [running]:"). This is the
// same trick the standard testing and net/http/pprof packages use.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Record sets the calling goroutine's last-error string and bumps the
// global monotonic error counter.
func Record(msg string) {
	gid := goroutineID()
	mu.Lock()
	lastByGID[gid] = msg
	mu.Unlock()
	errorCount.Add(1)
}

// LastError returns the calling goroutine's most recently recorded
// error string, or "" if none has been recorded on this goroutine.
func LastError() string {
	gid := goroutineID()
	mu.RLock()
	defer mu.RUnlock()
	return lastByGID[gid]
}

// ErrorCount returns the current value of the monotonic error counter.
func ErrorCount() uint64 {
	return errorCount.Load()
}

// CountSince reports whether any new error has been recorded since
// `previous`, a value previously returned by ErrorCount.
func CountSince(previous uint64) bool {
	return errorCount.Load() > previous
}
