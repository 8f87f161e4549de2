package sheet

import (
	"errors"
	"strings"
)

type RefKind int

const (
	RefTitle RefKind = iota
	RefKey
	RefURL
)

const urlFragment = "docs.google.com/spreadsheets"

// Ref identifies the spreadsheet named by GOOGLE_SHEET_NAME.
type Ref struct {
	Kind RefKind
	// Value is the spreadsheet id for RefURL and RefKey, the title otherwise.
	Value string
}

var ErrEmptyRef = errors.New("sheet: empty spreadsheet reference")

// ParseRef accepts a spreadsheet URL, a bare key or a title.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, ErrEmptyRef
	}
	if (strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) && strings.Contains(s, urlFragment) {
		_, rest, ok := strings.Cut(s, "/d/")
		if !ok {
			return Ref{}, errors.New("sheet: spreadsheet URL has no /d/<id> segment")
		}
		id, _, _ := strings.Cut(rest, "/")
		id, _, _ = strings.Cut(id, "?")
		id, _, _ = strings.Cut(id, "#")
		if id == "" {
			return Ref{}, errors.New("sheet: spreadsheet URL has an empty id")
		}
		return Ref{Kind: RefURL, Value: id}, nil
	}
	if isKey(s) {
		return Ref{Kind: RefKey, Value: s}, nil
	}
	return Ref{Kind: RefTitle, Value: s}, nil
}

func isKey(s string) bool {
	if len(s) < 20 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
