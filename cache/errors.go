package cache

import (
	"context"
	"io"
	"net"
	"syscall"

	"github.com/agentuity/go-cachekit/codec"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound means the key is absent or its record has expired.
	ErrNotFound = errors.New("cache: not found")
	// ErrCorruptData means a record exists but cannot be decoded into the
	// requested type. It is never a cache miss.
	ErrCorruptData = errors.New("cache: corrupt data")
	// ErrUnavailable means the backend could not be reached or did not answer
	// in time. Callers may retry with backoff.
	ErrUnavailable = errors.New("cache: backend unavailable")
	// ErrInvalidColumn is returned for a nil column or a column whose name is
	// empty or contains the namespace separator.
	ErrInvalidColumn = errors.New("cache: invalid column")
	// ErrBuild marks failures while constructing an engine.
	ErrBuild = errors.New("cache: engine construction failed")
	// ErrBackend marks any other storage-layer failure.
	ErrBackend = errors.New("cache: backend error")

	// ErrEncode is returned when a value cannot be serialized.
	ErrEncode = codec.ErrEncode
	// ErrDecode is returned when a record cannot be deserialized.
	ErrDecode = codec.ErrDecode
)

// Kind classifies a cache error.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindCorruptData
	KindUnavailable
	KindEncode
	KindDecode
	KindInvalidColumn
	KindBuild
	KindBackend
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindCorruptData:
		return "corrupt_data"
	case KindUnavailable:
		return "unavailable"
	case KindEncode:
		return "encode"
	case KindDecode:
		return "decode"
	case KindInvalidColumn:
		return "invalid_column"
	case KindBuild:
		return "build"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// KindOf returns the most specific Kind carried by err. A decode failure on a
// stored record reports KindCorruptData, and a construction failure reports
// KindBuild even when the underlying cause was an unreachable backend.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBuild):
		return KindBuild
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCorruptData):
		return KindCorruptData
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrEncode):
		return KindEncode
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrInvalidColumn):
		return KindInvalidColumn
	case errors.Is(err, ErrBackend):
		return KindBackend
	default:
		return KindUnknown
	}
}

// IsNotFound reports whether err is a cache miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// isConnectionError reports whether err came from the transport rather than
// from the store itself.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// backendError wraps a storage failure, marking it unavailable when it came
// from the transport. Context cancellation by the caller is returned as is.
func backendError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, format, args...)
	if errors.Is(err, context.Canceled) {
		return wrapped
	}
	if isConnectionError(err) {
		return errors.Mark(wrapped, ErrUnavailable)
	}
	return errors.Mark(wrapped, ErrBackend)
}
