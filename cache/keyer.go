package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/jonwraymond/uibridge/auth"
)

// keySeparator joins key components. The unit separator cannot occur in
// identity fields or command names, so distinct component sequences can
// never produce the same pre-image.
const keySeparator = "\x1f"

// Request describes the semantically relevant fields of a command for key
// derivation. Fields not listed here (request ids, transport flags) must not
// influence the key.
type Request struct {
	// Command is the command name (zKey or cmd).
	Command string

	// Action is the declared action, e.g. "read".
	Action string

	// Model is the target model/entity name.
	Model string

	// Where holds filter criteria. Map ordering does not affect the key.
	Where map[string]any

	// Fields is the requested field list.
	Fields []string

	// Order is the ordering clause.
	Order string

	// Limit and Offset bound the result window.
	Limit  int
	Offset int
}

// deriveKey digests the identity context and the request into a cache key.
// Identity fields come first so two identical requests under different
// identities can never collide.
func deriveKey(req Request, id *auth.Identity) string {
	parts := []string{
		id.UserID,
		id.AppName,
		id.Role,
		string(id.Kind),
		req.Command,
		req.Action,
		req.Model,
		canonicalWhere(req.Where),
		strings.Join(req.Fields, keySeparator),
		req.Order,
		strconv.Itoa(req.Limit),
		strconv.Itoa(req.Offset),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}

// canonicalWhere produces a deterministic representation of the filter map,
// independent of map iteration order.
func canonicalWhere(where map[string]any) string {
	if len(where) == 0 {
		return ""
	}
	b, err := canonicalize(where)
	if err != nil {
		// Unmarshalable filter values: fall back to best-effort JSON so the
		// request still keys consistently within a process.
		raw, _ := json.Marshal(where)
		return string(raw)
	}
	return string(b)
}

// canonicalize produces a deterministic JSON representation of the value.
// Maps are sorted by key.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
