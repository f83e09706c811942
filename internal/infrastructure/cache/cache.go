package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
)

var ErrCacheMiss = errors.New("cache miss")

// HashKey returns a stable short digest of v's JSON form, for use in cache keys.
func HashKey(v any) string {
	b, _ := json.Marshal(v)
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
