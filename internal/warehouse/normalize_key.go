package warehouse

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeKey converts a natural-key value to a canonical string form,
// suitable for in-memory mapping keys (e.g. "FUR-BO-10001798" or "20240301").
//
// Backends must not assume a particular underlying type for keys; drivers
// variously return string, []byte, or integer types for the same column.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
