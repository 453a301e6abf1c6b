// Package idgen provides pluggable ID generation for larder records.
//
// Constructors that mint identifiers (ingest, warehouse, the HTTP trace
// middleware) accept a Generator so tests can substitute a deterministic one.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// They sort by creation time, which keeps record IDs roughly in upload order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID
// (e.g. "rcp_", "imp_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7. Prefixed variants compose on top.
var Default Generator = UUIDv7()

// Sequence returns a Generator yielding prefix1, prefix2, ... in order.
// Not safe for concurrent use; intended for tests and golden files.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return prefix + itoa(n)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}
