package taxonomy

import (
	"strings"
	"unicode"
)

// Key folds a raw tag string into its lookup form: lower-cased, with every run
// of whitespace, punctuation or symbols collapsed to one underscore and no
// leading or trailing underscore. Letters and digits of any script are kept.
//
// Key is idempotent: Key(Key(s)) == Key(s).
func Key(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	pendingSep := false
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return sb.String()
}
