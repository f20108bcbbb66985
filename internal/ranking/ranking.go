// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ranking scores canonical articles against a query. The scorer is
// deterministic and stateless apart from its clock: seven signals in [0,1]
// are combined with fixed weights that sum to 1.0, and the breakdown is kept
// on each article so every score can be explained.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/litfinder/pkg/types"
)

// DefaultWeights are the production signal weights.
var DefaultWeights = map[types.Signal]float64{
	types.SignalSemantic:      0.35,
	types.SignalKeyword:       0.20,
	types.SignalCitation:      0.15,
	types.SignalRecency:       0.10,
	types.SignalOpenAccess:    0.05,
	types.SignalSourceQuality: 0.10,
	types.SignalLanguage:      0.05,
}

// DefaultSourceQuality is the static per-source trust table.
var DefaultSourceQuality = map[string]float64{
	"openalex":     0.9,
	"cyberleninka": 0.8,
	"crossref":     0.85,
	"pubmed":       0.95,
	"arxiv":        0.7,
}

const (
	unknownSourceQuality = 0.5
	unknownYearRecency   = 0.3
	neutralSimilarity    = 0.5
	neutralKeywordMatch  = 0.5
	titleBonus           = 0.3
	languageMismatch     = 0.5
	minTokenRunes        = 3
)

// Options carries per-call ranking inputs.
type Options struct {
	// PreferredLanguage is compared with each article's language ("en" when empty).
	PreferredLanguage string

	// QueryEmbedding enables cosine similarity for articles that carry an
	// embedding of the same dimension.
	QueryEmbedding []float64
}

// Ranker computes composite relevance scores.
type Ranker struct {
	weights       map[types.Signal]float64
	sourceQuality map[string]float64
	now           func() time.Time
}

// New returns a Ranker with the given weights. Every signal must have a
// non-negative weight and the weights must sum to 1.0.
func New(weights map[types.Signal]float64) (*Ranker, error) {
	sum := 0.0
	for _, s := range types.Signals {
		w, ok := weights[s]
		if !ok {
			return nil, fmt.Errorf("missing weight for signal %s", s)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight %f for signal %s", w, s)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("signal weights sum to %f, want 1.0", sum)
	}
	return &Ranker{
		weights:       weights,
		sourceQuality: DefaultSourceQuality,
		now:           time.Now,
	}, nil
}

// Default returns a Ranker with DefaultWeights.
func Default() *Ranker {
	r, err := New(DefaultWeights)
	if err != nil {
		panic(err)
	}
	return r
}

// WithClock returns a copy of r that reads the current year from now.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	cp := *r
	cp.now = now
	return &cp
}

// Rank scores every article, stores the score and signal breakdown on it,
// and returns the articles ordered by descending score. Equal scores keep
// their input (merge) order. The input slice is not reordered.
func (r *Ranker) Rank(articles []types.Article, query string, opts Options) []types.Article {
	if len(articles) == 0 {
		return []types.Article{}
	}

	lang := opts.PreferredLanguage
	if lang == "" {
		lang = "en"
	}
	tokens := queryTokens(query)
	maxCitations := 0
	for _, a := range articles {
		if a.CitedByCount > maxCitations {
			maxCitations = a.CitedByCount
		}
	}
	currentYear := r.now().Year()

	scored := make([]types.Article, len(articles))
	for i, a := range articles {
		signals := map[types.Signal]float64{
			types.SignalSemantic:      semanticSimilarity(a, opts.QueryEmbedding),
			types.SignalKeyword:       KeywordMatch(tokens, a.Title, a.Abstract),
			types.SignalCitation:      CitationScore(a.CitedByCount, maxCitations),
			types.SignalRecency:       RecencyScore(a.Year, currentYear),
			types.SignalOpenAccess:    boolScore(a.OpenAccess),
			types.SignalSourceQuality: r.sourceQualityScore(a.Source),
			types.SignalLanguage:      languageScore(a.Language, lang),
		}
		a.Signals = signals
		a.RelevanceScore = r.Combine(signals)
		scored[i] = a
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		si, sj := scored[order[i]].RelevanceScore, scored[order[j]].RelevanceScore
		if si != sj {
			return si > sj
		}
		return order[i] < order[j]
	})

	ranked := make([]types.Article, len(scored))
	for i, idx := range order {
		ranked[i] = scored[idx]
	}
	return ranked
}

// Combine returns the weighted sum of signals rounded to four decimals and
// clamped to [0,1].
func (r *Ranker) Combine(signals map[types.Signal]float64) float64 {
	total := 0.0
	for _, s := range types.Signals {
		total += signals[s] * r.weights[s]
	}
	total = math.Round(total*1e4) / 1e4
	return math.Max(0, math.Min(1, total))
}

func (r *Ranker) sourceQualityScore(source string) float64 {
	if q, ok := r.sourceQuality[strings.ToLower(source)]; ok {
		return q
	}
	return unknownSourceQuality
}

func semanticSimilarity(a types.Article, queryEmbedding []float64) float64 {
	if len(queryEmbedding) > 0 && len(a.Embedding) > 0 {
		return CosineSimilarity(queryEmbedding, a.Embedding)
	}
	if a.SourcePrior > 0 {
		return math.Min(1, a.SourcePrior)
	}
	return neutralSimilarity
}

// CosineSimilarity maps the cosine of two vectors from [-1,1] to [0,1].
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return (dot/(math.Sqrt(na)*math.Sqrt(nb)) + 1) / 2
}

// queryTokens returns the distinct lowercased whitespace tokens longer than
// two characters, in first-seen order.
func queryTokens(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) < minTokenRunes || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// KeywordMatch is the fraction of tokens found in title+abstract plus a
// bonus of up to 0.3 for tokens found in the title, clamped to 1. Matching
// is by substring. With no usable tokens the score is neutral (0.5).
func KeywordMatch(tokens []string, title, abstract string) float64 {
	if len(tokens) == 0 {
		return neutralKeywordMatch
	}
	titleLower := strings.ToLower(title)
	text := titleLower + " " + strings.ToLower(abstract)

	matches, titleMatches := 0, 0
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			matches++
		}
		if strings.Contains(titleLower, tok) {
			titleMatches++
		}
	}
	n := float64(len(tokens))
	score := float64(matches)/n + float64(titleMatches)/n*titleBonus
	return math.Min(score, 1.0)
}

// CitationScore is log1p(citations)/log1p(maxCitations), or 0 when the
// article has no citations.
func CitationScore(citations, maxCitations int) float64 {
	if citations <= 0 || maxCitations <= 0 {
		return 0
	}
	logMax := math.Log1p(float64(maxCitations))
	if logMax == 0 {
		return 0
	}
	return math.Min(1, math.Log1p(float64(citations))/logMax)
}

// RecencyScore decays with publication age in years. Unknown years (0)
// score 0.3.
func RecencyScore(year, currentYear int) float64 {
	if year == 0 {
		return unknownYearRecency
	}
	age := currentYear - year
	switch {
	case age <= 0:
		return 1.0
	case age <= 2:
		return 0.9
	case age <= 5:
		return 0.7
	case age <= 10:
		return 0.5
	default:
		return math.Max(0.1, 0.5-float64(age-10)*0.02)
	}
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func languageScore(lang, preferred string) float64 {
	if lang == "" {
		lang = "en"
	}
	if strings.EqualFold(lang, preferred) {
		return 1
	}
	return languageMismatch
}
