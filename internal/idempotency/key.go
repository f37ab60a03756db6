package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/codex-k8s/tutor-mcp/internal/constants"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
)

// Key derives the cache key of a call. providedID tells whether callID came
// from the caller rather than being generated. An empty key disables caching.
func Key(tool, callID string, providedID bool, args map[string]any, strategy string) (string, error) {
	var key string
	switch s := strings.ToLower(strings.TrimSpace(strategy)); s {
	case constants.CacheKeyStrategyCorrelationID:
		if providedID {
			key = callID
		}
	case constants.CacheKeyStrategyArgumentsHash:
		hash, err := HashArguments(args)
		if err != nil {
			return "", err
		}
		key = hash
	case "", constants.CacheKeyStrategyAuto:
		if providedID && callID != "" {
			key = callID
		} else {
			hash, err := HashArguments(args)
			if err != nil {
				return "", err
			}
			key = hash
		}
	default:
		return "", fmt.Errorf("unsupported cache key strategy: %s", strategy)
	}
	if strings.TrimSpace(key) == "" {
		return "", nil
	}
	return tool + ":" + key, nil
}

// HashArguments hashes the canonical JSON of args, ignoring reserved call id keys.
func HashArguments(args map[string]any) (string, error) {
	filtered := make(map[string]any, len(args))
	for k, v := range args {
		if k == protocol.ArgCorrelationID || k == protocol.ArgRequestID {
			continue
		}
		filtered[k] = v
	}
	data, err := canonicalJSON(filtered)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return []byte(strconv.Quote(v)), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(key))
			buf.WriteByte(':')
			data, err := canonicalJSON(v[key])
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}
