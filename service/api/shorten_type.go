package api

import (
	"strings"
	"unicode"
)

// ShortenType reduces the package paths inside a type name to bare package
// names, turning "map[uint64]*github.com/example/wire/frame.Header" into
// "map[uint64]*frame.Header". Type names it cannot parse are returned
// unchanged.
func ShortenType(typ string) string {
	out, ok := shorten(typ)
	if !ok {
		return typ
	}
	return out
}

func shorten(typ string) (string, bool) {
	switch {
	case strings.HasPrefix(typ, "*"):
		elem, ok := shorten(typ[1:])
		return "*" + elem, ok
	case strings.HasPrefix(typ, "map["):
		return shortenMap(typ)
	case strings.HasPrefix(typ, "["):
		// slice or array, the brackets carry over unchanged
		i := strings.Index(typ, "]")
		if i < 0 {
			return "", false
		}
		elem, ok := shorten(typ[i+1:])
		return typ[:i+1] + elem, ok
	}

	switch typ {
	case "interface {}", "interface{}", "struct {}", "struct{}":
		return typ, true
	}
	if hasAnonymousType(typ) {
		return "", false
	}

	if lbrk := strings.Index(typ, "["); lbrk >= 0 {
		return shortenInstantiation(typ, lbrk)
	}
	return shortenName(typ)
}

// shortenMap splits a map type at the bracket matching the opening one,
// then shortens key and element independently.
func shortenMap(typ string) (string, bool) {
	depth := 1
	for i := len("map["); i < len(typ); i++ {
		switch typ[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				key, kok := shorten(typ[len("map["):i])
				elem, eok := shorten(typ[i+1:])
				return "map[" + key + "]" + elem, kok && eok
			}
		}
	}
	return "", false
}

// shortenInstantiation shortens the name of a generic type along with each
// of its type arguments. lbrk is the offset of the opening bracket.
func shortenInstantiation(typ string, lbrk int) (string, bool) {
	if !strings.HasSuffix(typ, "]") {
		return "", false
	}
	base, ok := shorten(typ[:lbrk])
	if !ok {
		return "", false
	}
	args := strings.Split(typ[lbrk+1:len(typ)-1], ",")
	for i := range args {
		args[i], ok = shorten(strings.TrimSpace(args[i]))
		if !ok {
			return "", false
		}
	}
	return base + "[" + strings.Join(args, ", ") + "]", true
}

// shortenName drops the path from a package qualified type name. Names
// with a single path element are kept whole.
func shortenName(typ string) (string, bool) {
	lastSlash := -1
	nslash := 0
	for i, ch := range typ {
		switch {
		case ch == '/':
			lastSlash = i
			nslash++
		case unicode.IsLetter(ch) || unicode.IsDigit(ch):
		case ch == '_' || ch == '.' || ch == '@' || ch == '%' || ch == '-':
		default:
			return "", false
		}
	}
	if nslash <= 1 {
		return typ, true
	}
	return typ[lastSlash+1:], true
}

var anonymousTypeMarks = [...]struct {
	mark  string
	close byte
}{
	{"interface {", '}'},
	{"interface{", '}'},
	{"struct {", '}'},
	{"struct{", '}'},
	{"func (", ')'},
	{"func(", ')'},
}

// hasAnonymousType reports whether typ mentions a non-empty anonymous
// struct, interface or function type, which the shortener does not parse.
func hasAnonymousType(typ string) bool {
	for _, m := range anonymousTypeMarks {
		idx := strings.Index(typ, m.mark)
		if idx < 0 || idx+len(m.mark) >= len(typ) {
			continue
		}
		if typ[idx+len(m.mark)] != m.close {
			return true
		}
	}
	return false
}
