package pagination

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseToken extracts the integer value of a token field. Sherpa responses
// carry tokens as decimal strings; decoding with typed values turns them
// into numbers instead. Missing or unparseable values count as 0, which
// never advances a cursor.
func ParseToken(v any) int64 {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
