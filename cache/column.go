package cache

import (
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Separator joins a column name and a key into the fully-qualified key.
const Separator = ":"

// Column describes a logical namespace of keys and its time-to-live policy.
// Implementations must be immutable.
type Column interface {
	// Name is the stable namespace identifier. It must be non-empty and must
	// not contain Separator.
	Name() string
	// TTLSeconds is the record lifetime in seconds, measured from insertion.
	// Zero or negative means the record never expires.
	TTLSeconds() int
}

// ColumnDef is a static Column value.
type ColumnDef struct {
	ColumnName string
	TTL        int
}

var _ Column = ColumnDef{}

// NewColumn returns a Column named name whose records live for ttlSeconds.
func NewColumn(name string, ttlSeconds int) ColumnDef {
	return ColumnDef{ColumnName: name, TTL: ttlSeconds}
}

func (c ColumnDef) Name() string { return c.ColumnName }

func (c ColumnDef) TTLSeconds() int { return c.TTL }

// maxTTLSeconds is the largest TTL that fits in a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Expiry returns the column TTL as a duration, 0 meaning no expiry. TTLs too
// large for a time.Duration are capped at the maximum duration.
func Expiry(c Column) time.Duration {
	if ttl := c.TTLSeconds(); ttl > 0 {
		if int64(ttl) > maxTTLSeconds {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(ttl) * time.Second
	}
	return 0
}

// Key is the set of key types accepted by the typed operations.
type Key interface {
	~string | ~[]byte
}

// ValidateColumn checks that c can be used as a namespace.
func ValidateColumn(c Column) error {
	if c == nil {
		return errors.Mark(errors.New("cache: nil column"), ErrInvalidColumn)
	}
	name := c.Name()
	if name == "" {
		return errors.Mark(errors.New("cache: column name is empty"), ErrInvalidColumn)
	}
	if strings.Contains(name, Separator) {
		return errors.Mark(errors.Newf("cache: column name %q contains %q", name, Separator), ErrInvalidColumn)
	}
	return nil
}

// QualifiedKey returns "{column}:{key}", the storage key for key in c.
func QualifiedKey(c Column, key []byte) (string, error) {
	if err := ValidateColumn(c); err != nil {
		return "", err
	}
	return c.Name() + Separator + string(key), nil
}
