package storage

import (
	"fmt"
	"strings"
)

// Kind selects a backend technology.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQL    Kind = "sql"
	KindRedis  Kind = "redis"
)

// Kinds lists every supported backend technology.
var Kinds = []Kind{KindMemory, KindFile, KindSQL, KindRedis}

// ParseKind accepts the configured backend name, case-insensitively.
// "postgres" is accepted as an alias of "sql".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMemory, KindFile, KindSQL, KindRedis:
		return k, nil
	case "postgres":
		return KindSQL, nil
	default:
		return "", fmt.Errorf("unknown storage kind %q", s)
	}
}
