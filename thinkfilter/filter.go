// Package thinkfilter removes <think>…</think> spans from streamed model
// output. A Filter is stateful and must be used by a single stream only.
package thinkfilter

import (
	"strings"
	"unicode/utf8"
)

const (
	// OpenTag starts a suppressed reasoning span.
	OpenTag = "<think>"
	// CloseTag ends a suppressed reasoning span.
	CloseTag = "</think>"
)

// Filter is an incremental transducer that drops everything between OpenTag
// and CloseTag (markers included). Tags are matched ASCII case-insensitively
// and do not nest: a second OpenTag inside a span is ordinary suppressed text.
//
// Characters that may belong to a marker split across chunks are held back in
// pending until they can be classified. Output is never duplicated or
// reordered. The zero value is ready to use.
type Filter struct {
	inThink bool
	pending string
	blocks  int
}

// New returns an empty Filter.
func New() *Filter { return &Filter{} }

// Feed consumes the next chunk and returns the text that can be emitted now.
func (f *Filter) Feed(chunk string) string {
	if chunk == "" {
		return ""
	}
	f.pending += chunk

	var out strings.Builder
	for {
		if !f.inThink {
			if i := indexFold(f.pending, OpenTag); i >= 0 {
				out.WriteString(f.pending[:i])
				f.pending = f.pending[i+len(OpenTag):]
				f.inThink = true
				continue
			}
			cut := holdBack(f.pending, len(OpenTag)-1)
			out.WriteString(f.pending[:cut])
			f.pending = f.pending[cut:]
			return out.String()
		}

		if j := indexFold(f.pending, CloseTag); j >= 0 {
			f.pending = f.pending[j+len(CloseTag):]
			f.inThink = false
			f.blocks++
			continue
		}
		f.pending = f.pending[holdBack(f.pending, len(CloseTag)-1):]
		return out.String()
	}
}

// Flush ends the stream and returns whatever is still safe to emit. An
// unterminated think span swallows the rest of the stream, and a trailing
// fragment that is a proper prefix of OpenTag is dropped. The filter is reset.
func (f *Filter) Flush() string {
	rest, inThink := f.pending, f.inThink
	f.pending, f.inThink = "", false

	if inThink || isPrefixFold(OpenTag, rest) {
		return ""
	}
	return rest
}

// Thinking reports whether the filter is currently inside a think span.
func (f *Filter) Thinking() bool { return f.inThink }

// Blocks returns the number of think spans closed so far.
func (f *Filter) Blocks() int { return f.blocks }

// holdBack returns the byte offset in s before its last n runes.
func holdBack(s string, n int) int {
	cut := len(s)
	for ; n > 0 && cut > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:cut])
		cut -= size
	}
	return cut
}

// indexFold is strings.Index with ASCII case folding. tag must be ASCII, so
// a match can never start inside a multi-byte rune.
func indexFold(s, tag string) int {
	for i := 0; i+len(tag) <= len(s); i++ {
		if equalFoldASCII(s[i:i+len(tag)], tag) {
			return i
		}
	}
	return -1
}

// isPrefixFold reports whether s is a non-empty proper prefix of tag.
func isPrefixFold(tag, s string) bool {
	return s != "" && len(s) < len(tag) && equalFoldASCII(s, tag[:len(s)])
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
