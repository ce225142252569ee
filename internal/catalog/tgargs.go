package catalog

import (
	"bytes"
	"encoding/hex"
)

// DecodeTriggerArgs splits pg_trigger.tgargs into its arguments. The
// driver may hand the column over as raw NUL-separated bytes, in the bytea
// escape form ("a\000b\000") or in the hex form ("\x6100").
func DecodeTriggerArgs(v any) []string {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return nil
	}
	raw = decodeBytea(raw)
	if len(raw) == 0 {
		return []string{}
	}
	parts := bytes.Split(raw, []byte{0})
	// Every argument is NUL terminated, which leaves an empty tail.
	if len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = string(p)
	}
	return args
}

func decodeBytea(raw []byte) []byte {
	if bytes.IndexByte(raw, 0) >= 0 {
		return raw
	}
	if bytes.HasPrefix(raw, []byte(`\x`)) {
		if b, err := hex.DecodeString(string(raw[2:])); err == nil {
			return b
		}
	}
	if bytes.IndexByte(raw, '\\') < 0 {
		return raw
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			out = append(out, c)
			continue
		}
		if raw[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		if i+3 < len(raw) && isOctal(raw[i+1]) && isOctal(raw[i+2]) && isOctal(raw[i+3]) {
			out = append(out, (raw[i+1]-'0')<<6|(raw[i+2]-'0')<<3|(raw[i+3]-'0'))
			i += 3
			continue
		}
		out = append(out, c)
	}
	return out
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
