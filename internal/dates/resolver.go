// Package dates resolves a document's publication date from its URL, its text, or the clock.
package dates

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
)

// Source names where a resolved date came from.
type Source string

const (
	SourceURL      Source = "url"
	SourceContent  Source = "content"
	SourceFallback Source = "fallback"
)

const (
	longLayout  = "January 2, 2006"
	slashLayout = "1/2/2006"
	urlLayout   = "2006/1/2"
)

var (
	// The day is only read from the segment directly after the month.
	urlPattern   = regexp.MustCompile(`/(\d{4})/(\d{1,2})/(?:(\d{1,2})(?:/|$))?`)
	longPattern  = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),\s*(\d{4})`)
	slashPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	errNoMatch = errors.New("no date pattern matched")
)

// Resolver applies URL, content, then clock resolution.
type Resolver struct {
	clock  ingest.Clock
	logger *zap.Logger
}

// NewResolver builds a Resolver.
func NewResolver(clock ingest.Clock, logger *zap.Logger) *Resolver {
	if clock == nil {
		clock = ingest.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{clock: clock, logger: logger.Named("dates")}
}

// Resolve returns the publication date in UTC and where it came from.
func (r *Resolver) Resolve(rawURL, content string) (time.Time, Source) {
	t, source := r.resolve(rawURL, content)
	metrics.ObserveDateSource(string(source))
	return t, source
}

func (r *Resolver) resolve(rawURL, content string) (time.Time, Source) {
	d, err := FromURL(rawURL)
	if err == nil {
		return d, SourceURL
	}
	r.logDateError(err)

	for _, attempt := range []func(string) (time.Time, error){FromLongForm, FromSlashForm} {
		d, err := attempt(content)
		if err == nil {
			return d, SourceContent
		}
		r.logDateError(err)
	}
	return r.clock.Now().UTC(), SourceFallback
}

func (r *Resolver) logDateError(err error) {
	var parseErr *ingest.DateParseError
	if errors.As(err, &parseErr) {
		r.logger.Debug("date literal rejected",
			zap.String("literal", parseErr.Literal),
			zap.String("layout", parseErr.Layout),
			zap.Error(parseErr.Err),
		)
	}
}

// FromURL reads /YYYY/M/ or /YYYY/M/D/ from the URL path. Without a day segment the first of the month is used.
func FromURL(rawURL string) (time.Time, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	m := urlPattern.FindStringSubmatch(path)
	if m == nil {
		return time.Time{}, errNoMatch
	}
	day := m[3]
	if day == "" {
		day = "1"
	}
	literal := fmt.Sprintf("%s/%s/%s", m[1], trimZero(m[2]), trimZero(day))
	return parseUTC(urlLayout, literal)
}

// FromLongForm reads the first "Month D, YYYY" literal.
func FromLongForm(content string) (time.Time, error) {
	m := longPattern.FindStringSubmatch(content)
	if m == nil {
		return time.Time{}, errNoMatch
	}
	return parseUTC(longLayout, fmt.Sprintf("%s %s, %s", monthName(m[1]), trimZero(m[2]), m[3]))
}

// monthName normalises a matched month to the "January" casing time.Parse expects.
func monthName(s string) string {
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// FromSlashForm reads the first "M/D/YYYY" literal.
func FromSlashForm(content string) (time.Time, error) {
	m := slashPattern.FindStringSubmatch(content)
	if m == nil {
		return time.Time{}, errNoMatch
	}
	return parseUTC(slashLayout, fmt.Sprintf("%s/%s/%s", trimZero(m[1]), trimZero(m[2]), m[3]))
}

func parseUTC(layout, literal string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, literal, time.UTC)
	if err != nil {
		return time.Time{}, &ingest.DateParseError{Literal: literal, Layout: layout, Err: err}
	}
	return t, nil
}

// trimZero drops leading zeros so non-padded layouts accept "03".
func trimZero(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.Itoa(n)
}

// IsNoMatch reports whether err means no literal was found at all.
func IsNoMatch(err error) bool {
	return errors.Is(err, errNoMatch)
}
