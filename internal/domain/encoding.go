package domain

import (
	"encoding/base32"
	"strings"
)

// idEncoding is Crockford's Base32 alphabet in lower case without padding.
//
//nolint:gochecknoglobals
var idEncoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// EncodeID encodes raw bytes, typically a hash, as a lower-case Crockford Base32 id.
func EncodeID(raw []byte) string {
	return idEncoding.EncodeToString(raw)
}

// NormalizeID folds common transcription errors in a Crockford Base32 id:
// whitespace is dropped, letters are lower-cased, o becomes 0 and i/l become 1.
func NormalizeID(id string) string {
	var sb strings.Builder

	for _, r := range strings.ToLower(id) {
		switch r {
		case ' ', '\t', '\n', '-':
			continue
		case 'o':
			sb.WriteRune('0')
		case 'i', 'l':
			sb.WriteRune('1')
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
