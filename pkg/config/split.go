package config

import (
	"bytes"
	"unicode"
)

// SplitQuotedFields splits in on whitespace, like strings.Fields, except
// that spaces inside areas surrounded by the specified quote character do
// not split. A backslash escapes the quote character inside a quoted area:
// '\''
func SplitQuotedFields(in string, quote rune) []string {
	type splitState int
	const (
		inSpace splitState = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var buf bytes.Buffer

	for _, ch := range in {
		switch state {
		case inSpace:
			if ch == quote {
				state = inQuote
			} else if !unicode.IsSpace(ch) {
				buf.WriteRune(ch)
				state = inField
			}

		case inField:
			if ch == quote {
				state = inQuote
			} else if unicode.IsSpace(ch) {
				r = append(r, buf.String())
				buf.Reset()
				state = inSpace
			} else {
				buf.WriteRune(ch)
			}

		case inQuote:
			if ch == quote {
				state = inField
			} else if ch == '\\' {
				state = inQuoteEscaped
			} else {
				buf.WriteRune(ch)
			}

		case inQuoteEscaped:
			buf.WriteRune(ch)
			state = inQuote
		}
	}

	if state != inSpace {
		r = append(r, buf.String())
	}

	return r
}
