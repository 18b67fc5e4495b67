package checksum

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

type Type uint8

const (
	NONE Type = iota
	MURMUR3
	XXHASH
)

func (t Type) String() string {
	switch t {
	case MURMUR3:
		return "murmur3"
	case XXHASH:
		return "xxhash"
	default:
		return "none"
	}
}

// Parse accepts the names used on the command line and in config files.
func Parse(raw string) (Type, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", "")) {
	case "", "none":
		return NONE, nil
	case "murmur3", "murmur", "mmh3":
		return MURMUR3, nil
	case "xxhash", "xxh64", "xxhash64":
		return XXHASH, nil
	default:
		return NONE, fmt.Errorf("unknown checksum type %q", raw)
	}
}

// New returns a fresh hash for t, or nil for NONE.
func New(t Type) hash.Hash {
	switch t {
	case MURMUR3:
		return murmur3.New128()
	case XXHASH:
		return xxhash.New()
	default:
		return nil
	}
}

// Sum formats the current digest of h.
func Sum(h hash.Hash) string {
	if h == nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
