// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litfinder/pkg/types"
)

// oaiBase is the CyberLeninka OAI-PMH endpoint. Declared as a var so tests
// can substitute an httptest server.
var oaiBase = "https://cyberleninka.ru/oai"

const (
	// CyberLeninkaSource is the registry name of the OAI-PMH adapter.
	CyberLeninkaSource = "cyberleninka"

	cyberLeninkaPrior = 0.8
	oaiIDPrefix       = "oai:cyberleninka.ru:"
	oaiPDFURL         = "https://cyberleninka.ru/article/n/%s/pdf"
	oaiSubjectScore   = 0.5

	defaultMaxPages = 5

	// maxSetPages bounds ListSets resumption; the set list is small but
	// the loop must end even if a server keeps issuing tokens.
	maxSetPages = 100
)

// OAI-PMH error codes that are not failures.
const (
	oaiNoRecordsMatch = "noRecordsMatch"
	oaiIDDoesNotExist = "idDoesNotExist"
	oaiNoSetHierarchy = "noSetHierarchy"
)

// ErrOAIProtocol reports an oai:error response other than noRecordsMatch.
var ErrOAIProtocol = errors.New("oai-pmh error")

// CyberLeninka harvests the CyberLeninka repository over OAI-PMH. The
// protocol has no text search, so records are filtered client-side, and no
// search total, so Total is the number of matches collected.
type CyberLeninka struct {
	*httpSource
	baseURL  string
	maxPages int
}

// NewCyberLeninka returns the OAI-PMH adapter.
func NewCyberLeninka(cfg types.OAIConfig, opts SourceOptions) *CyberLeninka {
	base := oaiBase
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &CyberLeninka{
		httpSource: newHTTPSource(CyberLeninkaSource, "application/xml", opts),
		baseURL:    base,
		maxPages:   maxPages,
	}
}

// Name returns the source identifier.
func (c *CyberLeninka) Name() string { return CyberLeninkaSource }

// Search harvests ListRecords pages for each requested set, following
// resumption tokens up to maxPages per set, until req.Limit matches are
// found. The cursor is ignored. A failure after some matches were
// collected keeps those matches and records the error.
func (c *CyberLeninka) Search(ctx context.Context, req Request) types.PartialResult {
	res := types.PartialResult{Source: CyberLeninkaSource}
	if unsatisfiable(req.Filters) {
		return res
	}

	limit := req.Limit
	if limit <= 0 {
		limit = types.DefaultLimit
	}
	needle := strings.ToLower(strings.TrimSpace(req.Query))

	sets := req.Filters.Categories
	if len(sets) == 0 {
		sets = []string{""}
	}

harvest:
	for _, set := range sets {
		token := ""
		for page := 0; page < c.maxPages; page++ {
			resp, err := c.listRecords(ctx, req.Filters, set, token)
			if err != nil {
				res.Err = err
				break harvest
			}
			for _, rec := range resp.ListRecords.Records {
				a, ok := c.match(rec, needle, req.Filters)
				if !ok {
					continue
				}
				res.Items = append(res.Items, a)
				if len(res.Items) >= limit {
					break harvest
				}
			}
			token = strings.TrimSpace(resp.ListRecords.ResumptionToken)
			if token == "" {
				break
			}
		}
	}

	res.Total = len(res.Items)
	return res
}

// Fetch returns a single record by its slug or full OAI identifier.
func (c *CyberLeninka) Fetch(ctx context.Context, externalID string) (types.Article, error) {
	id := externalID
	if !strings.HasPrefix(id, oaiIDPrefix) {
		id = oaiIDPrefix + id
	}
	params := url.Values{
		"verb":           {"GetRecord"},
		"metadataPrefix": {"oai_dc"},
		"identifier":     {id},
	}
	resp, err := c.request(ctx, params)
	if err != nil {
		return types.Article{}, fmt.Errorf("fetching %s: %w", id, err)
	}
	if resp.Error != nil {
		if resp.Error.Code == oaiIDDoesNotExist {
			return types.Article{}, fmt.Errorf("%s: %w", id, ErrArticleNotFound)
		}
		return types.Article{}, resp.Error.err()
	}
	if len(resp.GetRecord.Records) == 0 {
		return types.Article{}, fmt.Errorf("%s: %w", id, ErrArticleNotFound)
	}
	return parseOAIRecord(resp.GetRecord.Records[0])
}

// ListSets returns every set the repository exposes, following resumption
// tokens. Set specs are the values Filters.Categories expects. A repository
// without sets yields an empty list.
func (c *CyberLeninka) ListSets(ctx context.Context) ([]types.Category, error) {
	var (
		sets  []types.Category
		token string
	)
	for page := 0; page < maxSetPages; page++ {
		params := url.Values{"verb": {"ListSets"}}
		if token != "" {
			params.Set("resumptionToken", token)
		}
		resp, err := c.request(ctx, params)
		if err != nil {
			return sets, fmt.Errorf("listing sets: %w", err)
		}
		if resp.Error != nil {
			if resp.Error.Code == oaiNoSetHierarchy {
				return sets, nil
			}
			return sets, resp.Error.err()
		}
		for _, s := range resp.ListSets.Sets {
			spec := strings.TrimSpace(s.Spec)
			if spec == "" {
				continue
			}
			sets = append(sets, types.Category{Spec: spec, Name: strings.TrimSpace(s.Name)})
		}
		token = strings.TrimSpace(resp.ListSets.ResumptionToken)
		if token == "" {
			return sets, nil
		}
	}
	c.log.Warn("set listing truncated", zap.Int("pages", maxSetPages), zap.Int("sets", len(sets)))
	return sets, nil
}

// listRecords fetches one ListRecords page. noRecordsMatch yields an empty
// response.
func (c *CyberLeninka) listRecords(ctx context.Context, f types.Filters, set, token string) (*oaiResponse, error) {
	params := url.Values{"verb": {"ListRecords"}}
	if token != "" {
		params.Set("resumptionToken", token)
	} else {
		params.Set("metadataPrefix", "oai_dc")
		if f.YearFrom != 0 {
			params.Set("from", strconv.Itoa(f.YearFrom)+"-01-01")
		}
		if f.YearTo != 0 {
			params.Set("until", strconv.Itoa(f.YearTo)+"-12-31")
		}
		if set != "" {
			params.Set("set", set)
		}
	}

	resp, err := c.request(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == oaiNoRecordsMatch {
			return &oaiResponse{}, nil
		}
		return nil, resp.Error.err()
	}
	return resp, nil
}

func (c *CyberLeninka) request(ctx context.Context, params url.Values) (*oaiResponse, error) {
	body, err := c.get(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var resp oaiResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing OAI-PMH response: %w", err)
	}
	return &resp, nil
}

// match normalizes rec and reports whether it satisfies the query and the
// client-side filters.
func (c *CyberLeninka) match(rec oaiRecord, needle string, f types.Filters) (types.Article, bool) {
	if rec.Header.Status == "deleted" {
		return types.Article{}, false
	}
	dc := rec.Metadata.DC
	searchable := strings.ToLower(strings.Join([]string{
		first(dc.Titles),
		first(dc.Descriptions),
		strings.Join(dc.Subjects, " "),
		strings.Join(dc.Creators, " "),
	}, " "))
	if !strings.Contains(searchable, needle) {
		return types.Article{}, false
	}

	a, err := parseOAIRecord(rec)
	if err != nil {
		c.log.Debug("skipping record", zap.Error(err))
		return types.Article{}, false
	}
	if len(f.Languages) > 0 && !containsFold(f.Languages, a.Language) {
		return types.Article{}, false
	}
	return a, true
}

// unsatisfiable reports filters no CyberLeninka record can meet: every
// record is open access and carries no citation count.
func unsatisfiable(f types.Filters) bool {
	if f.OpenAccess != nil && !*f.OpenAccess {
		return true
	}
	return f.CitedByMin != nil && *f.CitedByMin > 0
}

// parseOAIRecord normalizes one Dublin Core record.
func parseOAIRecord(rec oaiRecord) (types.Article, error) {
	identifier := strings.TrimSpace(rec.Header.Identifier)
	if identifier == "" {
		return types.Article{}, fmt.Errorf("%w: record without identifier", ErrRecordParse)
	}
	if rec.Metadata.DC.XMLName.Local == "" {
		return types.Article{}, fmt.Errorf("%w: record %s has no oai_dc metadata", ErrRecordParse, identifier)
	}
	dc := rec.Metadata.DC
	slug := identifier[strings.LastIndex(identifier, ":")+1:]

	a := types.Article{
		Source:      CyberLeninkaSource,
		ExternalID:  strings.TrimPrefix(identifier, oaiIDPrefix),
		Title:       strings.TrimSpace(first(dc.Titles)),
		Year:        yearOf(first(dc.Dates)),
		Journal:     strings.TrimSpace(first(dc.Sources)),
		PDFURL:      fmt.Sprintf(oaiPDFURL, slug),
		Abstract:    strings.TrimSpace(first(dc.Descriptions)),
		OpenAccess:  true,
		Language:    strings.TrimSpace(first(dc.Languages)),
		SourcePrior: cyberLeninkaPrior,
	}
	if a.Language == "" {
		a.Language = "ru"
	}
	for _, cr := range dc.Creators {
		if strings.TrimSpace(cr) == "" {
			continue
		}
		a.Authors = append(a.Authors, authorFromCreator(cr))
	}
	for i, s := range dc.Subjects {
		if i == maxConcepts {
			break
		}
		a.Concepts = append(a.Concepts, types.Concept{Name: s, Score: oaiSubjectScore})
	}
	return a, nil
}

// yearOf reads the year from a YYYY, YYYY-MM or YYYY-MM-DD date.
func yearOf(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// OAI-PMH XML structures. Elements match by local name, so the oai, dc and
// oai_dc namespaces need no explicit prefixes.
type oaiResponse struct {
	XMLName     xml.Name       `xml:"OAI-PMH"`
	Error       *oaiError      `xml:"error"`
	ListRecords oaiListRecords `xml:"ListRecords"`
	GetRecord   oaiGetRecord   `xml:"GetRecord"`
	ListSets    oaiListSets    `xml:"ListSets"`
}

type oaiError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

func (e *oaiError) err() error {
	return fmt.Errorf("%w: %s: %s", ErrOAIProtocol, e.Code, strings.TrimSpace(e.Message))
}

type oaiListRecords struct {
	Records         []oaiRecord `xml:"record"`
	ResumptionToken string      `xml:"resumptionToken"`
}

type oaiListSets struct {
	Sets            []oaiSet `xml:"set"`
	ResumptionToken string   `xml:"resumptionToken"`
}

type oaiSet struct {
	Spec string `xml:"setSpec"`
	Name string `xml:"setName"`
}

type oaiGetRecord struct {
	Records []oaiRecord `xml:"record"`
}

type oaiRecord struct {
	Header   oaiHeader   `xml:"header"`
	Metadata oaiMetadata `xml:"metadata"`
}

type oaiHeader struct {
	Status     string `xml:"status,attr"`
	Identifier string `xml:"identifier"`
}

type oaiMetadata struct {
	DC oaiDC `xml:"dc"`
}

type oaiDC struct {
	XMLName      xml.Name
	Titles       []string `xml:"title"`
	Creators     []string `xml:"creator"`
	Subjects     []string `xml:"subject"`
	Descriptions []string `xml:"description"`
	Publishers   []string `xml:"publisher"`
	Dates        []string `xml:"date"`
	Types        []string `xml:"type"`
	Sources      []string `xml:"source"`
	Languages    []string `xml:"language"`
	Rights       []string `xml:"rights"`
}
