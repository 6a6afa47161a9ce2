package api

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrTruncatedPayload means the host loaded fewer bytes than the value
// holds, usually because of a load limit.
type ErrTruncatedPayload struct {
	Loaded int64
	Total  int64
	// Param is the configuration parameter that raises the limit.
	Param string
}

func (err ErrTruncatedPayload) Error() string {
	return fmt.Sprintf("payload truncated: loaded %d of %d bytes (raise %s and retry)", err.Loaded, err.Total, err.Param)
}

// ErrNotPayload means a variable does not hold extractable payload bytes.
type ErrNotPayload struct {
	Type string
	Kind reflect.Kind
}

func (err ErrNotPayload) Error() string {
	if err.Type == "" {
		return fmt.Sprintf("cannot extract payload from value of kind %s", err.Kind)
	}
	return fmt.Sprintf("cannot extract payload from value of type %s (kind %s)", err.Type, err.Kind)
}

// payloadMaxUnwrap bounds pointer and interface unwrapping during payload
// extraction.
const payloadMaxUnwrap = 8

// PayloadBytes extracts the raw bytes held by a variable. Strings yield
// their value, byte slices and arrays yield their elements, pointers and
// interfaces are unwrapped first. The returned error describes why a value
// was unusable, including the load limit to raise when the host truncated
// it.
func (v *Variable) PayloadBytes() ([]byte, error) {
	cur := v
	for depth := 0; ; depth++ {
		if depth > payloadMaxUnwrap {
			return nil, fmt.Errorf("variable %s: too many indirections", v.Name)
		}
		if cur.Unreadable != "" {
			return nil, fmt.Errorf("variable %s is unreadable: %s", v.Name, cur.Unreadable)
		}

		switch cur.Kind {
		case reflect.String:
			if int64(len(cur.Value)) != cur.Len {
				return nil, ErrTruncatedPayload{Loaded: int64(len(cur.Value)), Total: cur.Len, Param: "max-string-len"}
			}
			return []byte(cur.Value), nil

		case reflect.Slice, reflect.Array:
			return cur.elementBytes()

		case reflect.Ptr, reflect.Interface:
			if len(cur.Children) == 0 {
				return nil, fmt.Errorf("variable %s: value not loaded", v.Name)
			}
			next := &cur.Children[0]
			if next.OnlyAddr {
				return nil, fmt.Errorf("variable %s: only the address was loaded (raise max-variable-recurse and retry)", v.Name)
			}
			cur = next

		default:
			return nil, ErrNotPayload{Type: cur.Type, Kind: cur.Kind}
		}
	}
}

func (v *Variable) elementBytes() ([]byte, error) {
	if !isByteElem(v.Type) && !firstChildIsByte(v) {
		return nil, ErrNotPayload{Type: v.Type, Kind: v.Kind}
	}
	if v.Kind == reflect.Slice && v.Base == 0 && len(v.Children) == 0 {
		return nil, fmt.Errorf("variable %s is nil", v.Name)
	}
	if int64(len(v.Children)) != v.Len {
		return nil, ErrTruncatedPayload{Loaded: int64(len(v.Children)), Total: v.Len, Param: "max-array-values"}
	}
	buf := make([]byte, len(v.Children))
	for i := range v.Children {
		c := &v.Children[i]
		if c.Unreadable != "" {
			return nil, fmt.Errorf("element %d is unreadable: %s", i, c.Unreadable)
		}
		n, err := strconv.ParseUint(c.Value, 10, 8)
		if err != nil {
			return nil, ErrNotPayload{Type: v.Type, Kind: v.Kind}
		}
		buf[i] = byte(n)
	}
	return buf, nil
}

// isByteElem reports whether a slice or array type name has a byte-sized
// element.
func isByteElem(typ string) bool {
	i := strings.Index(typ, "]")
	if i < 0 {
		return false
	}
	switch typ[i+1:] {
	case "byte", "uint8", "int8":
		return true
	}
	return false
}

func firstChildIsByte(v *Variable) bool {
	if len(v.Children) == 0 {
		return false
	}
	switch v.Children[0].Kind {
	case reflect.Uint8, reflect.Int8:
		return true
	}
	return false
}

// DecodedPayload extracts the payload bytes of v and base64-decodes them.
func (v *Variable) DecodedPayload() ([]byte, error) {
	b, err := v.PayloadBytes()
	if err != nil {
		return nil, err
	}
	return decodeBase64(string(b))
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if dec, err := enc.DecodeString(s); err == nil {
			return dec, nil
		}
	}
	return nil, fmt.Errorf("payload is not valid base64")
}
