package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Key derives a cache key from its parts. Parts are length-prefixed so that
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SetValue encodes v with msgpack and stores it under key.
func SetValue(c Cache, key string, v any) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	c.Set(key, b)
	return nil
}

// GetValue decodes the value stored under key into v. It returns an error
// wrapping ErrKeyNotFound when the key is absent.
func GetValue(c Cache, key string, v any) error {
	b, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err := msgpack.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding cache value: %w", err)
	}
	return nil
}
