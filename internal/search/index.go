// Package search ranks the educational articles against a free-text query.
//
// Every title and paragraph is a passage. A passage scores the Jaccard
// similarity between its token set and the query's, |Q ∩ P| / |Q ∪ P|, and an
// article ranks by its best passage. Tokens are lower-cased and accent-folded,
// so "classificacao" matches "Classificação". Ties break on the shorter
// passage, then document id. An Index never changes after NewIndex and is
// safe for concurrent use.
package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one article split into paragraphs.
type Document struct {
	ID         int
	Title      string
	Paragraphs []string
}

// Result is a ranked passage.
type Result struct {
	DocID   int     `json:"article_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Index answers ranked queries.
type Index interface {
	// TopK returns up to k best passages, several per document allowed.
	TopK(query string, k int) []Result
	// TopDocs returns up to k documents, each with its best passage.
	TopDocs(query string, k int) []Result
}

const defaultK = 3

// PortugueseStopwords are function words that carry no topic.
var PortugueseStopwords = []string{
	"a", "o", "as", "os", "de", "da", "do", "das", "dos", "e", "em", "no", "na",
	"um", "uma", "para", "por", "com", "que", "se", "seu", "sua", "ao", "é",
}

type settings struct {
	minRunes int
	stop     tokenSet
	limit    int
}

// Option tunes NewIndex.
type Option func(*settings)

// WithMinParagraphRunes drops paragraphs shorter than n runes (default 20).
// Titles are always kept.
func WithMinParagraphRunes(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.minRunes = n
		}
	}
}

// WithStopwords excludes words from both passages and queries.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		set := tokenSet{}
		for _, w := range words {
			if w = fold(strings.ToLower(strings.TrimSpace(w))); w != "" {
				set[w] = struct{}{}
			}
		}
		if len(set) > 0 {
			s.stop = set
		}
	}
}

// WithMaxPassages stops indexing after n passages.
func WithMaxPassages(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.limit = n
		}
	}
}

type tokenSet map[string]struct{}

func (s tokenSet) common(o tokenSet) int {
	if len(s) > len(o) {
		s, o = o, s
	}
	n := 0
	for w := range s {
		if _, ok := o[w]; ok {
			n++
		}
	}
	return n
}

type passage struct {
	doc   int
	title string
	text  string
	runes int
	toks  tokenSet
}

type index struct {
	set      settings
	passages []passage
}

// NewIndex indexes docs in order.
func NewIndex(docs []Document, opts ...Option) Index {
	ix := &index{set: settings{minRunes: 20}}
	for _, o := range opts {
		o(&ix.set)
	}
	for _, d := range docs {
		ix.add(d)
	}
	return ix
}

func (ix *index) full() bool {
	return ix.set.limit > 0 && len(ix.passages) >= ix.set.limit
}

func (ix *index) add(d Document) {
	for i, raw := range append([]string{d.Title}, d.Paragraphs...) {
		if ix.full() {
			return
		}
		text := normalizeWhitespace(raw)
		n := utf8.RuneCountInString(text)
		if n == 0 || (i > 0 && n < ix.set.minRunes) {
			continue
		}
		toks := tokenize(text, ix.set.stop)
		if len(toks) == 0 {
			continue
		}
		ix.passages = append(ix.passages, passage{doc: d.ID, title: d.Title, text: text, runes: n, toks: toks})
	}
}

type hit struct {
	Result
	runes int
}

func (ix *index) rank(q string) []hit {
	qt := tokenize(q, ix.set.stop)
	if len(qt) == 0 {
		return nil
	}
	var hits []hit
	for _, p := range ix.passages {
		c := qt.common(p.toks)
		if c == 0 {
			continue
		}
		hits = append(hits, hit{
			Result: Result{DocID: p.doc, Title: p.title, Snippet: p.text, Score: float64(c) / float64(len(qt)+len(p.toks)-c)},
			runes:  p.runes,
		})
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(a.runes, b.runes),
			cmp.Compare(a.DocID, b.DocID),
			strings.Compare(a.Snippet, b.Snippet),
		)
	})
	return hits
}

// collect keeps up to k hits accepted by keep, in rank order.
func (ix *index) collect(q string, k int, keep func(hit) bool) []Result {
	if k <= 0 {
		k = defaultK
	}
	var out []Result
	for _, h := range ix.rank(q) {
		if !keep(h) {
			continue
		}
		out = append(out, h.Result)
		if len(out) == k {
			break
		}
	}
	return out
}

func (ix *index) TopK(q string, k int) []Result {
	return ix.collect(q, k, func(hit) bool { return true })
}

func (ix *index) TopDocs(q string, k int) []Result {
	seen := map[int]bool{}
	return ix.collect(q, k, func(h hit) bool {
		if seen[h.DocID] {
			return false
		}
		seen[h.DocID] = true
		return true
	})
}

var (
	wordRE       = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)
	accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// normalizeWhitespace collapses every run of whitespace to one space and trims the ends.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fold strips diacritics.
func fold(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}

// tokenize returns the folded word set of s minus stop, nil when s has no
// words at all.
func tokenize(s string, stop tokenSet) tokenSet {
	words := wordRE.FindAllString(fold(strings.ToLower(s)), -1)
	if len(words) == 0 {
		return nil
	}
	set := make(tokenSet, len(words))
	for _, w := range words {
		if _, skip := stop[w]; !skip {
			set[w] = struct{}{}
		}
	}
	return set
}
