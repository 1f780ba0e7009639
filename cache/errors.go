package cache

import "errors"

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	// ErrInvalidKey is returned for empty or malformed cache keys.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrKeyTooLong is returned when a key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrNoLoader is returned by GetSchema on a miss with no loader supplied.
	ErrNoLoader = errors.New("cache: schema not cached and no loader supplied")
)

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}
