package api

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
)

const (
	// strings longer than this will cause slices, arrays and structs to be
	// printed on multiple lines when newlines is enabled
	maxShortStringLen = 7
	// string used for one indentation level (when printing on multiple lines)
	indentString = "\t"
)

// PrettyFlags select how a variable is rendered.
type PrettyFlags uint8

const (
	prettyTop PrettyFlags = 1 << iota
	prettyIncludeType

	// PrettyNewlines splits compound values over multiple lines.
	PrettyNewlines
	// PrettyShortenType reduces package paths in displayed type names to
	// the package name alone.
	PrettyShortenType
)

func (flags PrettyFlags) top() bool         { return flags&prettyTop != 0 }
func (flags PrettyFlags) newlines() bool    { return flags&PrettyNewlines != 0 }
func (flags PrettyFlags) includeType() bool { return flags&prettyIncludeType != 0 }

// typename returns the display name of v's type.
func (flags PrettyFlags) typename(v *Variable) string {
	if flags&PrettyShortenType != 0 {
		return ShortenType(v.Type)
	}
	return v.Type
}

// recurse returns the flags a child of the current value is rendered with.
// Rendering options carry over, position dependent state is reset.
func (flags PrettyFlags) recurse(newlines, includeType bool) PrettyFlags {
	out := flags &^ (prettyTop | PrettyNewlines | prettyIncludeType)
	if newlines {
		out |= PrettyNewlines
	}
	if includeType {
		out |= prettyIncludeType
	}
	return out
}

// PrettyString renders v according to opts, a combination of
// PrettyNewlines and PrettyShortenType.
func (v *Variable) PrettyString(opts PrettyFlags, indent string) string {
	var buf bytes.Buffer
	v.writeTo(&buf, opts|prettyTop|prettyIncludeType, indent)
	return buf.String()
}

// SinglelineString returns a representation of v on a single line.
func (v *Variable) SinglelineString() string {
	return v.PrettyString(0, "")
}

// MultilineString returns a representation of v on multiple lines.
func (v *Variable) MultilineString(indent string) string {
	return v.PrettyString(PrettyNewlines, indent)
}

func (v *Variable) writeTo(buf io.Writer, flags PrettyFlags, indent string) {
	if v.Unreadable != "" {
		fmt.Fprintf(buf, "(unreadable %s)", v.Unreadable)
		return
	}

	if !flags.top() && v.Addr == 0 && v.Value == "" {
		if flags.includeType() && v.Type != "void" {
			fmt.Fprintf(buf, "%s nil", flags.typename(v))
		} else {
			fmt.Fprint(buf, "nil")
		}
		return
	}

	switch v.Kind {
	case reflect.Slice:
		if flags.includeType() {
			fmt.Fprintf(buf, "%s len: %d, cap: %d, ", flags.typename(v), v.Len, v.Cap)
		}
		if v.Base == 0 && len(v.Children) == 0 {
			fmt.Fprint(buf, "nil")
			return
		}
		v.writeSliceOrArrayTo(buf, flags, indent)
	case reflect.Array:
		if flags.includeType() {
			fmt.Fprintf(buf, "%s ", flags.typename(v))
		}
		v.writeSliceOrArrayTo(buf, flags, indent)
	case reflect.Ptr:
		if v.Type == "" || len(v.Children) == 0 {
			fmt.Fprint(buf, "nil")
		} else if v.Children[0].OnlyAddr && v.Children[0].Addr != 0 {
			v.writePointerTo(buf, flags)
		} else {
			fmt.Fprint(buf, "*")
			v.Children[0].writeTo(buf, flags.recurse(flags.newlines(), flags.includeType()), indent)
		}
	case reflect.UnsafePointer:
		if len(v.Children) == 0 {
			fmt.Fprint(buf, "unsafe.Pointer(nil)")
		} else {
			fmt.Fprintf(buf, "unsafe.Pointer(%#x)", v.Children[0].Addr)
		}
	case reflect.String:
		v.writeStringTo(buf)
	case reflect.Chan, reflect.Struct:
		v.writeStructTo(buf, flags, indent)
	case reflect.Interface:
		v.writeInterfaceTo(buf, flags, indent)
	case reflect.Map:
		v.writeMapTo(buf, flags, indent)
	case reflect.Func:
		if v.Value == "" {
			fmt.Fprint(buf, "nil")
		} else {
			fmt.Fprint(buf, v.Value)
		}
	case reflect.Complex64, reflect.Complex128:
		fmt.Fprintf(buf, "(%s + %si)", v.Children[0].Value, v.Children[1].Value)
	default:
		if v.Value != "" {
			io.WriteString(buf, v.Value)
		} else {
			fmt.Fprintf(buf, "(unknown %s)", v.Kind)
		}
	}
}

func (v *Variable) writePointerTo(buf io.Writer, flags PrettyFlags) {
	typ := flags.typename(v)
	if strings.Contains(typ, "/") {
		typ = strconv.Quote(typ)
	}
	fmt.Fprintf(buf, "(%s)(%#x)", typ, v.Children[0].Addr)
}

func (v *Variable) writeStringTo(buf io.Writer) {
	s := v.Value
	if len(s) != int(v.Len) {
		s = fmt.Sprintf("%s...+%d more", s, int(v.Len)-len(s))
	}
	fmt.Fprintf(buf, "%q", s)
}

func (v *Variable) writeInterfaceTo(buf io.Writer, flags PrettyFlags, indent string) {
	if v.Addr == 0 {
		// an escaped interface variable that points to nil, this shouldn't
		// happen in normal code but can happen if the variable is out of scope.
		fmt.Fprint(buf, "nil")
		return
	}
	if len(v.Children) == 0 {
		fmt.Fprintf(buf, "%s ...", flags.typename(v))
		return
	}
	data := &v.Children[0]
	if flags.includeType() {
		if data.Kind == reflect.Invalid {
			fmt.Fprintf(buf, "%s ", flags.typename(v))
			if data.Addr == 0 {
				fmt.Fprint(buf, "nil")
				return
			}
		} else {
			fmt.Fprintf(buf, "%s(%s) ", flags.typename(v), flags.typename(data))
		}
	}
	dataFlags := flags.recurse(flags.newlines(), !flags.includeType())
	if data.Kind == reflect.Ptr {
		switch {
		case len(data.Children) == 0:
			fmt.Fprint(buf, "...")
		case data.Children[0].Addr == 0:
			fmt.Fprint(buf, "nil")
		case data.Children[0].OnlyAddr:
			fmt.Fprintf(buf, "0x%x", data.Addr)
		default:
			data.writeTo(buf, dataFlags, indent)
		}
		return
	}
	if data.OnlyAddr {
		typ := flags.typename(v)
		if strings.Contains(typ, "/") {
			typ = strconv.Quote(typ)
		}
		fmt.Fprintf(buf, "*(*%s)(%#x)", typ, v.Addr)
		return
	}
	data.writeTo(buf, dataFlags, indent)
}

func (v *Variable) writeStructTo(buf io.Writer, flags PrettyFlags, indent string) {
	if int(v.Len) != len(v.Children) && len(v.Children) == 0 {
		typ := flags.typename(v)
		if strings.Contains(typ, "/") {
			typ = strconv.Quote(typ)
		}
		fmt.Fprintf(buf, "(*%s)(%#x)", typ, v.Addr)
		return
	}

	if flags.includeType() {
		fmt.Fprintf(buf, "%s ", flags.typename(v))
	}

	nl := v.shouldNewlineStruct(flags.newlines())

	fmt.Fprint(buf, "{")

	for i := range v.Children {
		if nl {
			fmt.Fprintf(buf, "\n%s%s", indent, indentString)
		}
		fmt.Fprintf(buf, "%s: ", v.Children[i].Name)
		v.Children[i].writeTo(buf, flags.recurse(nl, true), indent+indentString)
		if i != len(v.Children)-1 || nl {
			fmt.Fprint(buf, ",")
			if !nl {
				fmt.Fprint(buf, " ")
			}
		}
	}

	if len(v.Children) != int(v.Len) {
		if nl {
			fmt.Fprintf(buf, "\n%s%s", indent, indentString)
		} else {
			fmt.Fprint(buf, ",")
		}
		fmt.Fprintf(buf, "...+%d more", int(v.Len)-len(v.Children))
	}

	fmt.Fprint(buf, "}")
}

func (v *Variable) writeMapTo(buf io.Writer, flags PrettyFlags, indent string) {
	if flags.includeType() {
		fmt.Fprintf(buf, "%s ", flags.typename(v))
	}
	if v.Base == 0 && len(v.Children) == 0 {
		fmt.Fprint(buf, "nil")
		return
	}

	nl := flags.newlines() && (len(v.Children) > 0)

	fmt.Fprint(buf, "[")

	for i := 0; i+1 < len(v.Children); i += 2 {
		key := &v.Children[i]
		value := &v.Children[i+1]

		if nl {
			fmt.Fprintf(buf, "\n%s%s", indent, indentString)
		}

		key.writeTo(buf, flags.recurse(false, false), indent+indentString)
		fmt.Fprint(buf, ": ")
		value.writeTo(buf, flags.recurse(nl, false), indent+indentString)
		if i != len(v.Children)-1 || nl {
			fmt.Fprint(buf, ", ")
		}
	}

	if len(v.Children)/2 != int(v.Len) {
		if len(v.Children) != 0 {
			if nl {
				fmt.Fprintf(buf, "\n%s%s", indent, indentString)
			} else {
				fmt.Fprint(buf, ",")
			}
			fmt.Fprintf(buf, "...+%d more", int(v.Len)-(len(v.Children)/2))
		} else {
			fmt.Fprint(buf, "...")
		}
	}

	if nl {
		fmt.Fprintf(buf, "\n%s", indent)
	}
	fmt.Fprint(buf, "]")
}

func (v *Variable) writeSliceOrArrayTo(buf io.Writer, flags PrettyFlags, indent string) {
	nl := v.shouldNewlineArray(flags.newlines())
	fmt.Fprint(buf, "[")

	for i := range v.Children {
		if nl {
			fmt.Fprintf(buf, "\n%s%s", indent, indentString)
		}
		v.Children[i].writeTo(buf, flags.recurse(nl, false), indent+indentString)
		if i != len(v.Children)-1 || nl {
			fmt.Fprint(buf, ",")
		}
	}

	if len(v.Children) != int(v.Len) {
		if len(v.Children) != 0 {
			if nl {
				fmt.Fprintf(buf, "\n%s%s", indent, indentString)
			} else {
				fmt.Fprint(buf, ",")
			}
			fmt.Fprintf(buf, "...+%d more", int(v.Len)-len(v.Children))
		} else {
			fmt.Fprint(buf, "...")
		}
	}

	if nl {
		fmt.Fprintf(buf, "\n%s", indent)
	}

	fmt.Fprint(buf, "]")
}

func (v *Variable) shouldNewlineArray(newlines bool) bool {
	if !newlines || len(v.Children) == 0 {
		return false
	}

	kind, hasptr := (&v.Children[0]).recursiveKind()

	switch kind {
	case reflect.Slice, reflect.Array, reflect.Struct, reflect.Map, reflect.Interface:
		return true
	case reflect.String:
		if hasptr {
			return true
		}
		for i := range v.Children {
			if len(v.Children[i].Value) > maxShortStringLen {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (v *Variable) recursiveKind() (reflect.Kind, bool) {
	hasptr := false
	var kind reflect.Kind
	for {
		kind = v.Kind
		if kind == reflect.Ptr {
			hasptr = true
			if len(v.Children) == 0 {
				return kind, hasptr
			}
			v = &(v.Children[0])
		} else {
			break
		}
	}
	return kind, hasptr
}

func (v *Variable) shouldNewlineStruct(newlines bool) bool {
	if !newlines || len(v.Children) == 0 {
		return false
	}

	for i := range v.Children {
		kind, hasptr := (&v.Children[i]).recursiveKind()

		switch kind {
		case reflect.Slice, reflect.Array, reflect.Struct, reflect.Map, reflect.Interface:
			return true
		case reflect.String:
			if hasptr {
				return true
			}
			if len(v.Children[i].Value) > maxShortStringLen {
				return true
			}
		}
	}

	return false
}

// PrettyExamineMemory formats a memory area for display.
//
// format selects the number base ('x' hex, 'o' octal, 'd' decimal, 'b'
// binary), size is the width in bytes of each value.
func PrettyExamineMemory(address uint64, memArea []byte, isLittleEndian bool, format byte, size int) string {
	var (
		cols      int
		colFormat string
		colBytes  = size

		addrLen int
		addrFmt string
	)

	switch format {
	case 'b':
		// Avoid emitting rows that are too long when using binary format.
		cols = 4
		colFormat = fmt.Sprintf("%%0%db", colBytes*8)
	case 'o':
		cols = 8
		colFormat = fmt.Sprintf("0%%0%do", colBytes*3) // Always keep one leading zero for octal.
	case 'd':
		cols = 8
		colFormat = fmt.Sprintf("%%0%dd", colBytes*3)
	case 'x':
		cols = 8
		colFormat = fmt.Sprintf("0x%%0%dx", colBytes*2) // Always keep one leading '0x' for hex.
	default:
		return fmt.Sprintf("not supported format %q\n", string(format))
	}
	colFormat += "\t"

	l := len(memArea)
	rows := l / (cols * colBytes)
	if l%(cols*colBytes) != 0 {
		rows++
	}

	// Always use the last address' length to format, so adjacent rows line up.
	if l != 0 {
		addrLen = len(fmt.Sprintf("%x", address+uint64(l)))
	}
	addrFmt = "0x%0" + strconv.Itoa(addrLen) + "x:\t"

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)

	for i := 0; i < rows; i++ {
		fmt.Fprintf(w, addrFmt, address)

		for j := 0; j < cols; j++ {
			offset := i*(cols*colBytes) + j*colBytes
			if offset+colBytes <= len(memArea) {
				n := byteArrayToUInt64(memArea[offset:offset+colBytes], isLittleEndian)
				fmt.Fprintf(w, colFormat, n)
			}
		}
		fmt.Fprintln(w, "")
		address += uint64(cols * colBytes)
	}
	w.Flush()
	return b.String()
}

func byteArrayToUInt64(buf []byte, isLittleEndian bool) uint64 {
	var n uint64
	if isLittleEndian {
		for i := len(buf) - 1; i >= 0; i-- {
			n = n<<8 + uint64(buf[i])
		}
	} else {
		for i := 0; i < len(buf); i++ {
			n = n<<8 + uint64(buf[i])
		}
	}
	return n
}
