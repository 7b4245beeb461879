package thinkfilter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

// run feeds every chunk through a fresh filter and returns the concatenated output.
func run(chunks ...string) string {
	f := New()
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(f.Feed(c))
	}
	b.WriteString(f.Flush())
	return b.String()
}

func TestFilter_SplitInvariance(t *testing.T) {
	const (
		visible = "Y is the visible answer."
		input   = "<think>X marks a hidden thought</think>" + visible
	)

	for i := 0; i <= len(input); i++ {
		assert.Equalf(t, visible, run(input[:i], input[i:]), "split at %d", i)
		for j := i; j <= len(input); j++ {
			assert.Equalf(t, visible, run(input[:i], input[i:j], input[j:]), "split at %d/%d", i, j)
		}
	}
}

func TestFilter_SplitMarkerAcrossChunks(t *testing.T) {
	f := New()
	var got strings.Builder
	got.WriteString(f.Feed("<thi"))
	got.WriteString(f.Feed("nk>secret</th"))
	got.WriteString(f.Feed("ink>visible"))
	got.WriteString(f.Flush())
	assert.Equal(t, "visible", got.String())
}

func TestFilter_MarkerSplitAcrossManyChunks(t *testing.T) {
	chunks := []string{"a", "<", "t", "h", "i", "n", "k", ">", "hidden", "<", "/", "t", "h", "i", "n", "k", ">", "b"}
	assert.Equal(t, "ab", run(chunks...))
}

func TestFilter_Unterminated(t *testing.T) {
	f := New()
	out := f.Feed("<think>abc")
	out += f.Flush()
	assert.Equal(t, "", out)

	assert.Equal(t, "before ", run("before <think>never closed", " still hidden"))
}

func TestFilter_OnlyOpenTag(t *testing.T) {
	assert.Equal(t, "", run("<think>"))
}

func TestFilter_EmptyFeedDoesNotMutate(t *testing.T) {
	f := New()
	assert.Equal(t, "", f.Feed("<th"))
	before := *f
	assert.Equal(t, "", f.Feed(""))
	assert.Equal(t, before, *f)
}

func TestFilter_CaseInsensitive(t *testing.T) {
	assert.Equal(t, "ab", run("a<THINK>x</Think>b"))
	assert.Equal(t, "ab", run("a<tHi", "Nk>x</THI", "NK>b"))
}

func TestFilter_NoNesting(t *testing.T) {
	assert.Equal(t, "after", run("<think>one <think> two</think>after"))
	assert.Equal(t, "a </think>c", run("a <think>x</think></think>c"))
}

func TestFilter_MultipleBlocks(t *testing.T) {
	f := New()
	out := f.Feed("a<think>1</think>b<think>2</think>c")
	out += f.Flush()
	assert.Equal(t, "abc", out)
	assert.Equal(t, 2, f.Blocks())
}

func TestFilter_PassThroughWithoutTags(t *testing.T) {
	input := "plain text with < and > but no tags"
	assert.Equal(t, input, run(input))

	f := New()
	first := f.Feed("hello world")
	assert.Equal(t, "hello", first)
	assert.Equal(t, " world", f.Flush())
}

func TestFilter_FlushDropsOpenTagPrefix(t *testing.T) {
	for _, tail := range []string{"<", "<t", "<th", "<thi", "<THIN", "<think"} {
		f := New()
		assert.Equal(t, "", f.Feed(tail))
		assert.Equalf(t, "", f.Flush(), "tail %q", tail)
	}

	// Only a pending buffer that is itself a tag prefix is dropped.
	assert.Equal(t, "hi <thi", run("hi <thi"))
	assert.Equal(t, "<tx", run("<tx"))
}

func TestFilter_ThinkingState(t *testing.T) {
	f := New()
	assert.False(t, f.Thinking())
	f.Feed("a<think>")
	assert.True(t, f.Thinking())
	f.Feed("x</think>")
	assert.False(t, f.Thinking())
	assert.Equal(t, 1, f.Blocks())
}

func TestFilter_FlushResets(t *testing.T) {
	f := New()
	f.Feed("<think>hidden")
	assert.Equal(t, "", f.Flush())
	assert.False(t, f.Thinking())
	assert.Equal(t, "next", f.Feed("next")+f.Flush())
}

func TestFilter_MultiByteRunes(t *testing.T) {
	input := "héllo wörld ✓ <think>秘密</think>日本語のテキスト"
	want := "héllo wörld ✓ 日本語のテキスト"

	runes := []rune(input)
	f := New()
	var got strings.Builder
	for _, r := range runes {
		out := f.Feed(string(r))
		assert.True(t, utf8.ValidString(out))
		got.WriteString(out)
	}
	got.WriteString(f.Flush())
	assert.Equal(t, want, got.String())

	// Emitted fragments never split a rune even when chunks are large.
	f = New()
	out := f.Feed("ab✓✓✓✓✓✓✓")
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "ab✓", out)
}
