package search

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfind/internal/telemetry"
)

// =============================================================================
// Compile
// =============================================================================

func TestCompile_LiteralDefaultIsCaseInsensitive(t *testing.T) {
	// Given: default filters
	p := Compile("hello", Filters{})

	// Then: "Hello" matches
	assert.Equal(t, telemetry.ModeLiteral, p.Mode)
	assert.Equal(t, []MatchSpan{{Start: 0, Length: 5}}, FindMatches(p, "Hello there"))
}

func TestCompile_CaseSensitive(t *testing.T) {
	p := Compile("hello", Filters{CaseSensitive: true})

	assert.Empty(t, FindMatches(p, "Hello"))
	assert.Len(t, FindMatches(p, "hello Hello hello"), 2)
}

func TestCompile_LiteralEscapesMetacharacters(t *testing.T) {
	tests := []string{"a.b", "1+1", "(x)", "[y]", `c:\dir`, "$5^", "a|b", "what?"}

	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			p := Compile(q, Filters{})
			text := "xx " + q + " yy"
			spans := FindMatches(p, text)
			require.Len(t, spans, 1)
			assert.Equal(t, q, text[spans[0].Start:spans[0].End()])
		})
	}

	// "a.b" must not act as a wildcard
	assert.Empty(t, FindMatches(Compile("a.b", Filters{}), "axb"))
}

func TestCompile_WholeWord(t *testing.T) {
	// Given: "cat" as a whole word
	p := Compile("cat", Filters{WholeWord: true})

	// When: searching text where "cat" is also a prefix
	spans := FindMatches(p, "category cat")

	// Then: only the standalone word matches
	assert.Equal(t, []MatchSpan{{Start: 9, Length: 3}}, spans)
}

func TestCompile_RegexMode(t *testing.T) {
	p := Compile(`inv-\d+`, Filters{Regex: true})

	assert.Equal(t, telemetry.ModeRegex, p.Mode)
	spans := FindMatches(p, "INV-12 and inv-7")
	assert.Equal(t, []MatchSpan{{0, 6}, {11, 5}}, spans)
}

func TestCompile_InvalidRegexFallsBackToLiteral(t *testing.T) {
	// Given: an unparseable regex with regex mode on
	p := Compile("[", Filters{Regex: true})

	// Then: it is matched literally, not reported as an error
	assert.Equal(t, telemetry.ModeRegexFallback, p.Mode)
	assert.Equal(t, []MatchSpan{{Start: 2, Length: 1}}, FindMatches(p, "a [ b"))
}

func TestCompile_FallbackHonorsWholeWord(t *testing.T) {
	p := Compile("(ab", Filters{Regex: true, WholeWord: true})

	assert.Equal(t, telemetry.ModeRegexFallback, p.Mode)
	assert.Equal(t, `(?i)\b\(ab\b`, p.Source())
}

func TestCompile_RegexIgnoresWholeWord(t *testing.T) {
	p := Compile("cat", Filters{Regex: true, WholeWord: true})

	assert.Len(t, FindMatches(p, "category cat"), 2)
}

func TestCompile_LookaheadFallsBack(t *testing.T) {
	// RE2 has no lookaround, so the query is taken literally.
	p := Compile("foo(?=bar)", Filters{Regex: true})

	assert.Equal(t, telemetry.ModeRegexFallback, p.Mode)
	assert.Empty(t, FindMatches(p, "foobar"))
}

// =============================================================================
// CachedCompiler
// =============================================================================

func TestCachedCompiler_ReusesPatterns(t *testing.T) {
	c := NewCachedCompiler(8)

	a := c.Compile("total", Filters{})
	b := c.Compile("total", Filters{})
	d := c.Compile("total", Filters{CaseSensitive: true})

	assert.Same(t, a, b)
	assert.NotSame(t, a, d)
	assert.Equal(t, 2, c.Len())
}

func TestCachedCompiler_Evicts(t *testing.T) {
	c := NewCachedCompiler(2)
	for i := 0; i < 5; i++ {
		c.Compile(fmt.Sprintf("q%d", i), Filters{})
	}
	assert.Equal(t, 2, c.Len())
}

func TestCachedCompiler_KeyDistinguishesQueries(t *testing.T) {
	// Queries that look like flag prefixes must not collide
	assert.NotEqual(t, cacheKey(`c--"x"`, Filters{}), cacheKey("x", Filters{CaseSensitive: true}))
}

func TestCachedCompiler_ConcurrentUse(t *testing.T) {
	c := NewCachedCompiler(4)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := c.Compile(fmt.Sprintf("w%d", i%6), Filters{})
			_ = FindMatches(p, "w1 w2 w3 w4 w5")
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
