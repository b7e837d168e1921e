package alert

import "strings"

// ParseFields extracts key/value pairs from a raw webhook body. The format
// is deliberately loose so that both machine-generated payloads and
// hand-typed test alerts are accepted:
//
//	secret: MY_SECRET; symbol: BTC-USD; action: buy; amount: 10.0; tv_id: 123
//
// Segments are split on ';'. A segment is split on its first ':' into a
// lower-cased, trimmed key and a trimmed value; segments without a ':' are
// dropped. When a key repeats the last occurrence wins. ParseFields never
// fails; missing required fields are rejected downstream.
func ParseFields(raw string) map[string]string {
	fields := make(map[string]string)
	for _, segment := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(segment, ":")
		if !found {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}
