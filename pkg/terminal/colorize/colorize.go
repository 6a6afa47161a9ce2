// Package colorize prints JSON documents with ANSI color escapes.
package colorize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Style describes the style of a chunk of text.
type Style uint8

const (
	NormalStyle Style = iota
	KeyStyle
	StringStyle
	NumberStyle
	LiteralStyle
)

// Print writes to out a colorized version of the JSON document src,
// reindented with indent. An empty indent selects the compact form.
// Object members are written in document order unless sortKeys is set.
// Values nested more than maxDepth levels deep are collapsed to "{...}"
// or "[...]", maxDepth <= 0 disables collapsing.
func Print(out io.Writer, src []byte, colorEscapes map[Style]string, indent string, sortKeys bool, maxDepth int) error {
	root, err := decode(src)
	if err != nil {
		return err
	}

	w := &spanWriter{w: out, colorEscapes: colorEscapes}
	p := &printer{w: w, indent: indent, sortKeys: sortKeys, maxDepth: maxDepth}
	p.print(root, 0)
	w.end()
	return nil
}

// node is a value of a decoded JSON document. The kind field holds '{' for
// objects, '[' for arrays, '"' for strings, '0' for numbers and 'l' for
// the three literals. Object member order is preserved, keys and elems run
// parallel.
type node struct {
	kind  byte
	text  string
	keys  []string
	elems []*node
}

func decode(src []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	root, err := decodeValue(dec)
	if err == io.EOF {
		return nil, errors.New("unexpected end of JSON input")
	}
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after top-level value")
	}
	return root, nil
}

func decodeValue(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch tok := tok.(type) {
	case json.Delim:
		switch tok {
		case '{':
			n := &node{kind: '{'}
			for dec.More() {
				keytok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keytok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keytok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.elems = append(n.elems, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &node{kind: '['}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				n.elems = append(n.elems, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected %q", tok.String())
	case string:
		return &node{kind: '"', text: tok}, nil
	case json.Number:
		return &node{kind: '0', text: tok.String()}, nil
	case bool:
		if tok {
			return &node{kind: 'l', text: "true"}, nil
		}
		return &node{kind: 'l', text: "false"}, nil
	case nil:
		return &node{kind: 'l', text: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

type printer struct {
	w        *spanWriter
	indent   string
	sortKeys bool
	maxDepth int
}

func (p *printer) print(n *node, depth int) {
	switch n.kind {
	case '{':
		if p.collapse(depth) && len(n.elems) > 0 {
			p.w.write(NormalStyle, "{...}")
			return
		}
		if len(n.elems) == 0 {
			p.w.write(NormalStyle, "{}")
			return
		}
		p.w.write(NormalStyle, "{")
		for i, idx := range p.memberOrder(n) {
			if i > 0 {
				p.w.write(NormalStyle, ",")
			}
			p.newline(depth + 1)
			p.w.write(KeyStyle, quote(n.keys[idx]))
			p.w.write(NormalStyle, ":")
			if p.indent != "" {
				p.w.write(NormalStyle, " ")
			}
			p.print(n.elems[idx], depth+1)
		}
		p.newline(depth)
		p.w.write(NormalStyle, "}")
	case '[':
		if p.collapse(depth) && len(n.elems) > 0 {
			p.w.write(NormalStyle, "[...]")
			return
		}
		if len(n.elems) == 0 {
			p.w.write(NormalStyle, "[]")
			return
		}
		p.w.write(NormalStyle, "[")
		for i, elem := range n.elems {
			if i > 0 {
				p.w.write(NormalStyle, ",")
			}
			p.newline(depth + 1)
			p.print(elem, depth+1)
		}
		p.newline(depth)
		p.w.write(NormalStyle, "]")
	case '"':
		p.w.write(StringStyle, quote(n.text))
	case '0':
		p.w.write(NumberStyle, n.text)
	case 'l':
		p.w.write(LiteralStyle, n.text)
	}
}

func (p *printer) collapse(depth int) bool {
	return p.maxDepth > 0 && depth >= p.maxDepth
}

func (p *printer) newline(depth int) {
	if p.indent == "" {
		return
	}
	p.w.write(NormalStyle, "\n")
	for i := 0; i < depth; i++ {
		p.w.write(NormalStyle, p.indent)
	}
}

func (p *printer) memberOrder(n *node) []int {
	order := make([]int, len(n.keys))
	for i := range order {
		order[i] = i
	}
	if p.sortKeys {
		sort.SliceStable(order, func(i, j int) bool { return n.keys[order[i]] < n.keys[order[j]] })
	}
	return order
}

// quote returns the JSON representation of s. Unlike %q it emits escapes
// that are valid JSON.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

type spanWriter struct {
	w            io.Writer
	colorEscapes map[Style]string
	curStyle     Style
}

func (w *spanWriter) write(style Style, s string) {
	if w.curStyle != style {
		w.curStyle = style
		w.style(style)
	}
	io.WriteString(w.w, s)
}

func (w *spanWriter) style(style Style) {
	if w.colorEscapes == nil {
		return
	}
	esc := w.colorEscapes[style]
	if esc == "" {
		esc = w.colorEscapes[NormalStyle]
	}
	fmt.Fprintf(w.w, "%s", esc)
}

func (w *spanWriter) end() {
	if w.curStyle != NormalStyle {
		w.curStyle = NormalStyle
		w.style(NormalStyle)
	}
}
