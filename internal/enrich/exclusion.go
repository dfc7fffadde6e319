package enrich

import (
	"strings"
)

// DefaultExcluded are the domains whose articles are never stored.
var DefaultExcluded = []string{"foxnews.com", "dailywire.com"}

// exclusionList matches hosts against configured domains. A plain entry covers the
// domain and its subdomains; "*.x" and ".x" entries cover subdomains of x and x itself.
type exclusionList struct {
	domains []string
}

func newExclusionList(patterns []string) *exclusionList {
	list := &exclusionList{}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		value = strings.TrimPrefix(value, "*")
		value = strings.TrimPrefix(value, ".")
		if value == "" {
			continue
		}
		list.add(value)
	}
	return list
}

func (l *exclusionList) add(domain string) {
	for _, existing := range l.domains {
		if existing == domain {
			return
		}
	}
	l.domains = append(l.domains, domain)
}

// Excludes reports whether link points at an excluded domain.
func (l *exclusionList) Excludes(link string) bool {
	if l == nil || len(l.domains) == 0 {
		return false
	}
	host := hostOf(link)
	if host == "" {
		return false
	}
	for _, domain := range l.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// hostOf extracts the lowercased host without validating escapes elsewhere in the link.
func hostOf(link string) string {
	s := strings.ToLower(strings.TrimSpace(link))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else {
		s = strings.TrimPrefix(s, "//")
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "]"); i >= 0 {
			s = s[1:i]
		}
	} else if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, ".")
}
