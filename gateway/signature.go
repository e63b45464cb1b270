package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Sign computes the gateway request digest: drop non-scalar fields, mix in the
// shared secret under the Password key, sort keys lexicographically and hash
// the bare concatenation of values. The exclusion rules and sort order are the
// processor's contract — do not touch them.
func Sign(fields map[string]any, password string) string {
	flat := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		s, ok := scalarString(v)
		if !ok {
			continue
		}
		flat[k] = s
	}
	flat["Password"] = password

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(flat[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest and compares it in constant time. The caller
// must remove the Token field from fields beforehand.
func Verify(fields map[string]any, providedDigest, password string) bool {
	expected := Sign(fields, password)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(providedDigest)) == 1
}

// scalarString renders a signable value the way the processor does: booleans
// as true/false, numbers without exponent notation. Objects, arrays and nulls
// are excluded from signing entirely.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case json.Number:
		return t.String(), true
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		return "", false
	}
	return fmt.Sprint(v), true
}
