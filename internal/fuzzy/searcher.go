// Package fuzzy ranks dictionary entries by approximate similarity to recognized text.
package fuzzy

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/arbovm/levenshtein"
)

// Candidate is a dictionary entry with its similarity to the query in [0, 1].
type Candidate struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type dictionary struct {
	entries    []string
	normalized []string
}

// Searcher matches queries against a dictionary that can be replaced while
// searches are running.
type Searcher struct {
	dict       atomic.Pointer[dictionary]
	maxResults int
	threshold  float64
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithMaxResults bounds the number of results; zero or less means unbounded.
func WithMaxResults(n int) Option {
	return func(s *Searcher) { s.maxResults = n }
}

// WithThreshold excludes candidates scoring below t.
func WithThreshold(t float64) Option {
	return func(s *Searcher) { s.threshold = t }
}

func NewSearcher(entries []string, opts ...Option) *Searcher {
	s := &Searcher{maxResults: 5, threshold: 0.6}
	for _, opt := range opts {
		opt(s)
	}
	s.SetDictionary(entries)
	return s
}

// SetDictionary atomically replaces the dictionary. Blank entries are dropped.
func (s *Searcher) SetDictionary(entries []string) {
	d := &dictionary{
		entries:    make([]string, 0, len(entries)),
		normalized: make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		n := normalize(e)
		if n == "" {
			continue
		}
		d.entries = append(d.entries, e)
		d.normalized = append(d.normalized, n)
	}
	s.dict.Store(d)
}

// Len reports the current dictionary size.
func (s *Searcher) Len() int {
	return len(s.dict.Load().entries)
}

// Search returns matching entries, best first.
func (s *Searcher) Search(query string) []string {
	scored := s.SearchScored(query)
	out := make([]string, len(scored))
	for i, c := range scored {
		out[i] = c.Text
	}
	return out
}

// SearchScored is Search with scores. Equal scores keep dictionary order.
func (s *Searcher) SearchScored(query string) []Candidate {
	return s.rank(query, s.threshold)
}

// SearchAll ranks every entry with a non-zero score, ignoring the threshold.
// It is still bounded by the max results setting.
func (s *Searcher) SearchAll(query string) []Candidate {
	return s.rank(query, 0)
}

func (s *Searcher) rank(query string, threshold float64) []Candidate {
	q := normalize(query)
	d := s.dict.Load()
	out := []Candidate{}
	if q == "" {
		return out
	}

	for i, n := range d.normalized {
		score := similarity(q, n)
		if score < threshold || score == 0 {
			continue
		}
		out = append(out, Candidate{Text: d.entries[i], Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if s.maxResults > 0 && len(out) > s.maxResults {
		out = out[:s.maxResults]
	}
	return out
}

// Similarity compares a query and a candidate after case and whitespace normalisation.
func Similarity(query, candidate string) float64 {
	return similarity(normalize(query), normalize(candidate))
}

// similarity is the better of the whole-string ratio and the best ratio of
// the candidate against any equal-length window of a longer query, so a
// brand embedded in a longer line still scores high.
func similarity(q, c string) float64 {
	if q == "" || c == "" {
		return 0
	}
	best := ratio(q, c)

	qr := []rune(q)
	cr := []rune(c)
	if len(qr) > len(cr) {
		for i := 0; i+len(cr) <= len(qr); i++ {
			if r := ratio(string(qr[i:i+len(cr)]), c); r > best {
				best = r
				if best == 1 {
					break
				}
			}
		}
	}
	return best
}

func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(longest)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
