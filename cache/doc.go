// Package cache provides column-scoped key/value caching over pluggable
// storage engines, with type-safe generic helpers on top.
//
// # Columns
//
// Every record lives in a [Column]: a named namespace carrying a time to
// live in seconds. A record written to a column expires TTLSeconds after the
// write; zero or negative never expires. Column names must be non-empty and
// must not contain [Separator], since engines address records as
// "{column}:{key}".
//
//	var Users = cache.NewColumn("users", 600)
//
// # Engines
//
// An [Engine] stores opaque bytes. Several are provided:
//
//   - [NewNoop] stores nothing. Get always misses. Use it to switch caching
//     off without touching call sites.
//
//   - [NewMemory] keeps records in process, bounded by W-TinyLFU eviction
//     ([github.com/maypok86/otter/v2]). Expiry is checked on read.
//
//   - [NewSQLite] persists records in a SQLite database using
//     [modernc.org/sqlite] (pure Go, no CGO). The schema is applied with goose
//     migrations. Expired rows are invisible on read and deleted lazily;
//     [WithExpiryCheck] adds a background sweep.
//
//   - [NewRedis] and [OpenRedis] store records as Redis strings written with
//     SET ... EX, so the server enforces expiry. DropColumn scans the
//     column namespace and unlinks what it finds.
//
//   - [NewComposite] chains engines, e.g. memory in front of Redis.
//
//   - [NewGuarded] puts a circuit breaker in front of an engine so an
//     unreachable backend fails fast.
//
// [Build] picks and constructs an engine from a [Config].
//
// # Typed operations
//
// [Cache] owns one engine and a codec. The package-level generic functions
// encode and decode through it:
//
//	c := cache.New(engine)
//	err := cache.Insert(ctx, c, Users, "42", User{Name: "Ada"})
//	user, err := cache.Get[User](ctx, c, Users, "42")
//
// Go does not allow generic methods, so Insert, Get, Remove and Exists are
// functions taking the Cache rather than methods on it.
//
// [Exec] is a read-through helper. On a miss it calls the [Invoker], stores
// what it returns and deduplicates concurrent misses for the same key.
//
// # Errors
//
// Errors are classified with sentinels that work with errors.Is:
// [ErrNotFound] for a miss or an expired record, [ErrCorruptData] when a
// stored record cannot be decoded into the requested type, [ErrUnavailable]
// when the backend cannot be reached in time, and [ErrEncode]/[ErrDecode] for
// codec failures. [KindOf] reduces an error to a [Kind]. Nothing in this
// package retries.
package cache
