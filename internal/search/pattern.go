package search

import (
	"regexp"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docfind/internal/telemetry"
)

// DefaultPatternCacheSize is the number of compiled patterns kept by a
// CachedCompiler when no size is configured.
const DefaultPatternCacheSize = 256

// Filters controls how a query is matched. The zero value is a
// case-insensitive literal substring search.
type Filters struct {
	CaseSensitive bool `json:"caseSensitive"`
	WholeWord     bool `json:"wholeWord"`
	Regex         bool `json:"regex"`
}

// Pattern is a compiled query. It is immutable and safe for concurrent use.
type Pattern struct {
	re   *regexp.Regexp
	Mode telemetry.QueryMode
}

// Source returns the regular expression the pattern was compiled from.
func (p *Pattern) Source() string {
	return p.re.String()
}

// Compile turns a query and filters into a Pattern.
//
// With Regex set the query is compiled as RE2 syntax; if that fails the
// query is matched literally instead and Mode reports ModeRegexFallback.
// Literal queries are escaped and, with WholeWord set, anchored to word
// boundaries. WholeWord does not apply to regex queries.
func Compile(query string, f Filters) *Pattern {
	if f.Regex {
		if re, err := regexp.Compile(withCase(query, f.CaseSensitive)); err == nil {
			return &Pattern{re: re, Mode: telemetry.ModeRegex}
		}
		p := compileLiteral(query, f)
		p.Mode = telemetry.ModeRegexFallback
		return p
	}
	return compileLiteral(query, f)
}

func compileLiteral(query string, f Filters) *Pattern {
	expr := regexp.QuoteMeta(query)
	if f.WholeWord {
		expr = `\b` + expr + `\b`
	}
	// An escaped literal always compiles.
	re := regexp.MustCompile(withCase(expr, f.CaseSensitive))
	return &Pattern{re: re, Mode: telemetry.ModeLiteral}
}

func withCase(expr string, caseSensitive bool) string {
	if caseSensitive {
		return expr
	}
	return "(?i)" + expr
}

// CachedCompiler memoizes Compile results in an LRU cache keyed by the
// query and its filters.
type CachedCompiler struct {
	cache *lru.Cache[string, *Pattern]
}

// NewCachedCompiler creates a compiler caching up to size patterns.
func NewCachedCompiler(size int) *CachedCompiler {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	cache, _ := lru.New[string, *Pattern](size)
	return &CachedCompiler{cache: cache}
}

// Compile returns the cached pattern for (query, f), compiling it on a miss.
func (c *CachedCompiler) Compile(query string, f Filters) *Pattern {
	key := cacheKey(query, f)
	if p, ok := c.cache.Get(key); ok {
		return p
	}
	p := Compile(query, f)
	c.cache.Add(key, p)
	return p
}

// Len returns the number of cached patterns.
func (c *CachedCompiler) Len() int {
	return c.cache.Len()
}

func cacheKey(query string, f Filters) string {
	flags := []byte{'-', '-', '-'}
	if f.CaseSensitive {
		flags[0] = 'c'
	}
	if f.WholeWord {
		flags[1] = 'w'
	}
	if f.Regex {
		flags[2] = 'r'
	}
	return string(flags) + strconv.Quote(query)
}
