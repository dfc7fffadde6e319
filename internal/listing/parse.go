// Package listing discovers candidate document links on the paginated listing.
package listing

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

// Rules describe how document links are recognized on a listing page.
type Rules struct {
	// Origin resolves relative hrefs.
	Origin string
	// PathMarker must appear in a document link.
	PathMarker string
	// ListingSuffix marks links back to the listing itself.
	ListingSuffix string
}

// DefaultRules returns the rules for the White House presidential-actions listing.
func DefaultRules() Rules {
	return Rules{
		Origin:        "https://www.whitehouse.gov",
		PathMarker:    "/presidential-actions/",
		ListingSuffix: "executive-orders/",
	}
}

// Parse extracts candidate document links from a listing page body.
// Article links are preferred; page-wide anchors are only consulted when no article yields one.
func Parse(body []byte, rules Rules) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ingest.ParseError{URL: rules.Origin, Err: err}
	}
	base, err := url.Parse(rules.Origin)
	if err != nil {
		return nil, &ingest.ParseError{URL: rules.Origin, Err: err}
	}

	links := articleLinks(doc, rules, base)
	if len(links) == 0 {
		links = anchorLinks(doc, rules, base)
	}
	return links, nil
}

func articleLinks(doc *goquery.Document, rules Rules, base *url.URL) []string {
	var links []string
	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		href, ok := article.Find("a[href]").First().Attr("href")
		if !ok || !strings.Contains(href, rules.PathMarker) {
			return
		}
		if abs, ok := resolve(base, href); ok {
			links = append(links, abs)
		}
	})
	return links
}

func anchorLinks(doc *goquery.Document, rules Rules, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, rules.PathMarker) {
			return
		}
		if rules.ListingSuffix != "" && strings.HasSuffix(href, rules.ListingSuffix) {
			return
		}
		if abs, ok := resolve(base, href); ok {
			links = append(links, abs)
		}
	})
	return links
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
