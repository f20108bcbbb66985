// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litfinder/internal/httputil"
	"github.com/pdiddy/litfinder/pkg/types"
)

// openAlexBase is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var openAlexBase = "https://api.openalex.org"

const (
	// OpenAlexSource is the registry name of the OpenAlex adapter.
	OpenAlexSource = "openalex"

	openAlexPrior = 0.9

	// openAlexPageWindow is the deepest result reachable with page-number
	// pagination.
	openAlexPageWindow = 10000

	maxConcepts = 10

	defaultConceptLimit = 10
	maxConceptLimit     = 200

	openAlexIDPrefix = "https://openalex.org/"
	doiPrefix        = "https://doi.org/"
)

// openAlexSelect limits responses to the fields the normalizer reads.
var openAlexSelect = strings.Join([]string{
	"id", "doi", "title", "display_name", "publication_year", "language",
	"authorships", "primary_location", "abstract_inverted_index",
	"cited_by_count", "open_access", "best_oa_location", "concepts", "biblio",
}, ",")

// ErrPageWindow is returned for offset requests past the page-number
// window; callers should switch to cursor pagination.
var ErrPageWindow = errors.New("offset beyond page window, use cursor pagination")

// OpenAlex searches the OpenAlex works catalog. It supports page-number and
// cursor pagination.
type OpenAlex struct {
	*httpSource
	baseURL string
	email   string
	apiKey  string
}

// NewOpenAlex returns the OpenAlex adapter.
func NewOpenAlex(cfg types.OpenAlexConfig, opts SourceOptions) *OpenAlex {
	base := openAlexBase
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAlex{
		httpSource: newHTTPSource(OpenAlexSource, "application/json", opts),
		baseURL:    base,
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
	}
}

// Name returns the source identifier.
func (o *OpenAlex) Name() string { return OpenAlexSource }

// Search runs one works query. In cursor mode the provider's next cursor
// is surfaced on the result.
func (o *OpenAlex) Search(ctx context.Context, req Request) types.PartialResult {
	res := types.PartialResult{Source: OpenAlexSource}

	params, err := o.searchParams(req)
	if err != nil {
		res.Err = err
		return res
	}

	body, err := o.get(ctx, o.baseURL+"/works?"+params.Encode())
	if err != nil {
		res.Err = err
		return res
	}

	var page openAlexPage
	if err := json.Unmarshal(body, &page); err != nil {
		res.Err = fmt.Errorf("parsing OpenAlex response: %w", err)
		return res
	}

	for _, raw := range page.Results {
		a, err := o.parseWork(raw)
		if err != nil {
			o.log.Debug("skipping record", zap.Error(err))
			continue
		}
		res.Items = append(res.Items, a)
	}

	res.Total = page.Meta.Count
	if res.Total < len(res.Items) {
		res.Total = len(res.Items)
	}
	if req.Cursor != "" && page.Meta.NextCursor != nil {
		res.NextCursor = *page.Meta.NextCursor
	}
	return res
}

// Fetch returns a single work, e.g. "W2741809807".
func (o *OpenAlex) Fetch(ctx context.Context, externalID string) (types.Article, error) {
	id := strings.TrimPrefix(externalID, openAlexIDPrefix)
	params := url.Values{}
	o.addCredentials(params)

	rawURL := o.baseURL + "/works/" + url.PathEscape(id)
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	body, err := o.get(ctx, rawURL)
	if err != nil {
		var ce *httputil.ClientError
		if errors.As(err, &ce) && ce.Status == 404 {
			return types.Article{}, fmt.Errorf("openalex %s: %w", id, ErrArticleNotFound)
		}
		return types.Article{}, fmt.Errorf("fetching openalex work %s: %w", id, err)
	}
	return o.parseWork(body)
}

// SearchConcepts looks up topics by name. The returned ids are the values
// Filters.Concepts expects. A non-positive limit means 10; limits above the
// provider's page size are capped.
func (o *OpenAlex) SearchConcepts(ctx context.Context, query string, limit int) ([]types.Concept, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: concept query is empty", types.ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = defaultConceptLimit
	}
	limit = min(limit, maxConceptLimit)

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(limit)},
	}
	o.addCredentials(params)

	body, err := o.get(ctx, o.baseURL+"/concepts?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("searching openalex concepts: %w", err)
	}

	var page openAlexPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex concepts: %w", err)
	}

	concepts := make([]types.Concept, 0, len(page.Results))
	for _, raw := range page.Results {
		var c openAlexConcept
		if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
			o.log.Debug("skipping concept", zap.ByteString("raw", raw))
			continue
		}
		concepts = append(concepts, types.Concept{
			ID:    strings.TrimPrefix(c.ID, openAlexIDPrefix),
			Name:  c.DisplayName,
			Score: c.Score,
			Level: c.Level,
		})
	}
	return concepts, nil
}

func (o *OpenAlex) searchParams(req Request) (url.Values, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = types.DefaultLimit
	}

	params := url.Values{
		"search":   {req.Query},
		"per_page": {strconv.Itoa(limit)},
		"select":   {openAlexSelect},
		"sort":     {"relevance_score:desc"},
	}

	if req.Cursor != "" {
		params.Set("cursor", req.Cursor)
	} else {
		page := req.Offset/limit + 1
		if page*limit > openAlexPageWindow {
			return nil, fmt.Errorf("page %d of %d: %w", page, limit, ErrPageWindow)
		}
		params.Set("page", strconv.Itoa(page))
	}

	if f := openAlexFilter(req.Filters); f != "" {
		params.Set("filter", f)
	}
	o.addCredentials(params)
	return params, nil
}

func (o *OpenAlex) addCredentials(params url.Values) {
	if o.email != "" {
		params.Set("mailto", o.email)
	}
	if o.apiKey != "" {
		params.Set("api_key", o.apiKey)
	}
}

// openAlexFilter renders the comma-separated filter expression. Inclusive
// bounds are expressed with the provider's strict comparison operators.
func openAlexFilter(f types.Filters) string {
	var parts []string
	if f.YearFrom != 0 {
		parts = append(parts, fmt.Sprintf("publication_year:>%d", f.YearFrom-1))
	}
	if f.YearTo != 0 {
		parts = append(parts, fmt.Sprintf("publication_year:<%d", f.YearTo+1))
	}
	if f.CitedByMin != nil {
		parts = append(parts, fmt.Sprintf("cited_by_count:>%d", *f.CitedByMin-1))
	}
	if f.CitedByMax != nil {
		parts = append(parts, fmt.Sprintf("cited_by_count:<%d", *f.CitedByMax+1))
	}
	if f.OpenAccess != nil {
		parts = append(parts, "is_oa:"+strconv.FormatBool(*f.OpenAccess))
	}
	if f.PublicationType != "" {
		parts = append(parts, "type:"+f.PublicationType)
	}
	if len(f.Languages) > 0 {
		parts = append(parts, "language:"+strings.Join(f.Languages, "|"))
	}
	if len(f.Concepts) > 0 {
		parts = append(parts, "concepts.id:"+strings.Join(f.Concepts, "|"))
	}
	return strings.Join(parts, ",")
}

// parseWork normalizes one work into the canonical record.
func (o *OpenAlex) parseWork(raw []byte) (types.Article, error) {
	var w openAlexWork
	if err := json.Unmarshal(raw, &w); err != nil {
		return types.Article{}, fmt.Errorf("%w: %v", ErrRecordParse, err)
	}
	if w.ID == "" {
		return types.Article{}, fmt.Errorf("%w: work without id", ErrRecordParse)
	}

	a := types.Article{
		Source:       OpenAlexSource,
		ExternalID:   strings.TrimPrefix(w.ID, openAlexIDPrefix),
		Title:        w.DisplayName,
		Year:         w.PublicationYear,
		DOI:          strings.TrimPrefix(w.DOI, doiPrefix),
		Abstract:     reconstructAbstract(w.AbstractInvertedIndex),
		CitedByCount: w.CitedByCount,
		OpenAccess:   w.OpenAccess.IsOA,
		Language:     w.Language,
		SourcePrior:  openAlexPrior,
	}
	if a.Title == "" {
		a.Title = w.Title
	}
	if a.Language == "" {
		a.Language = "en"
	}

	for _, as := range w.Authorships {
		if as.Author.DisplayName != "" {
			a.Authors = append(a.Authors, authorFromDisplayName(as.Author.DisplayName))
		}
	}

	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		a.Journal = w.PrimaryLocation.Source.DisplayName
	}
	if w.BestOALocation != nil {
		a.PDFURL = w.BestOALocation.PDFURL
	}

	a.Volume = atoiOrZero(w.Biblio.Volume)
	a.Issue = atoiOrZero(w.Biblio.Issue)
	switch {
	case w.Biblio.FirstPage != "" && w.Biblio.LastPage != "":
		a.Pages = w.Biblio.FirstPage + "-" + w.Biblio.LastPage
	case w.Biblio.FirstPage != "":
		a.Pages = w.Biblio.FirstPage
	}

	for i, c := range w.Concepts {
		if i == maxConcepts {
			break
		}
		a.Concepts = append(a.Concepts, types.Concept{
			ID:    strings.TrimPrefix(c.ID, openAlexIDPrefix),
			Name:  c.DisplayName,
			Score: c.Score,
			Level: c.Level,
		})
	}
	return a, nil
}

// atoiOrZero parses purely numeric biblio fields; anything else is 0.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures. Results stay raw so one malformed work
// does not fail the page.
type openAlexPage struct {
	Meta    openAlexMeta      `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

type openAlexMeta struct {
	Count      int     `json:"count"`
	PerPage    int     `json:"per_page"`
	Page       *int    `json:"page"`
	NextCursor *string `json:"next_cursor"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	DOI                   string               `json:"doi"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	PublicationYear       int                  `json:"publication_year"`
	Language              string               `json:"language"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	CitedByCount          int                  `json:"cited_by_count"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
	Concepts              []openAlexConcept    `json:"concepts"`
	Biblio                openAlexBiblio       `json:"biblio"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	PDFURL string          `json:"pdf_url"`
	Source *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type openAlexConcept struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
}

type openAlexBiblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}
