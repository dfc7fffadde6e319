package extract

import (
	"bytes"
	"maps"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// UnknownTitle is used when no title rule matches.
const UnknownTitle = "Unknown Title"

// DefaultPlaceholders are titles of index pages that are not documents.
var DefaultPlaceholders = []string{
	"Executive Orders",
	"Proclamations",
	"Presidential Actions",
	"Presidential Memoranda",
	"Nominations & Appointments",
}

// DefaultCategorySuffixes identify listing pages that show up among candidate links.
var DefaultCategorySuffixes = []string{
	"executive-orders/",
	"presidential-actions/",
}

// Result is what a document page yields.
type Result struct {
	Title       string
	Content     string
	Placeholder bool
}

// Extractor applies the title and content rule chains.
type Extractor struct {
	titleRules   []Rule[string]
	contentRules []Rule[string]
	placeholders map[string]struct{}
}

// New builds an Extractor that flags the given placeholder titles.
func New(placeholders []string) *Extractor {
	set := make(map[string]struct{}, len(placeholders))
	for _, title := range placeholders {
		set[title] = struct{}{}
	}
	return &Extractor{
		titleRules: []Rule[string]{
			TextOf("h1.page-title"),
			TextOf("h1"),
		},
		contentRules: []Rule[string]{
			BlockOf("div.entry-content"),
			BlockOf("div.page-content__content"),
			BlockOf("article"),
		},
		placeholders: set,
	}
}

// Extract reads a document page. Markup is parsed leniently, so an error only
// surfaces when the body cannot be read at all.
func (e *Extractor) Extract(body []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	title := First(doc, UnknownTitle, e.titleRules...)
	return Result{
		Title:       title,
		Content:     First(doc, "", e.contentRules...),
		Placeholder: e.IsPlaceholder(title),
	}, nil
}

// IsPlaceholder reports whether title names an index page.
func (e *Extractor) IsPlaceholder(title string) bool {
	_, ok := e.placeholders[title]
	return ok
}

// Placeholders returns the configured placeholder titles in sorted order.
func (e *Extractor) Placeholders() []string {
	return slices.Sorted(maps.Keys(e.placeholders))
}

// IsCategoryURL reports whether link points at a listing page rather than a document.
func IsCategoryURL(link string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(link, suffix) {
			return true
		}
	}
	return false
}
