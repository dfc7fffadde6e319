// Package extract pulls the title and body text out of a document page.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule is a single extraction attempt. It reports false when it found nothing usable.
type Rule[T any] func(doc *goquery.Document) (T, bool)

// First returns the value of the first rule that succeeds, or fallback.
func First[T any](doc *goquery.Document, fallback T, rules ...Rule[T]) T {
	for _, rule := range rules {
		if v, ok := rule(doc); ok {
			return v
		}
	}
	return fallback
}

// TextOf returns a rule yielding the trimmed text of the first element matching selector.
func TextOf(selector string) Rule[string] {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		text := strings.TrimSpace(sel.Text())
		return text, text != ""
	}
}

// BlockOf returns a rule yielding the flattened text of the first element matching selector.
// A matching container wins even when it holds no text.
func BlockOf(selector string) Rule[string] {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return Flatten(sel), true
	}
}
