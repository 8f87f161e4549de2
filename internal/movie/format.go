package movie

import (
	"fmt"
	"strings"
)

const dash = "—"

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return dash
	}
	return s
}

// FormatEntry renders one library line:
// "Title (Year) — 8/10 • фильм • драма • муж".
func FormatEntry(r Record) string {
	owner := NormalizeOwner(r.Owner)
	ownerPart := ""
	if owner != "" {
		ownerPart = " • " + owner
	}
	return fmt.Sprintf("%s (%s) — %s/10 • %s • %s%s",
		orDash(r.Film), orDash(r.Year), orDash(r.Rating), NormalizeType(r.Type), orDash(r.Genre), ownerPart)
}

// FormatInt renders n with spaces as thousands separators. Negative values render as 0.
func FormatInt(n int64) string {
	if n < 0 {
		n = 0
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
