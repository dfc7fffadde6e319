package listing

// linkSet is an insertion-ordered set of URLs.
type linkSet struct {
	seen  map[string]struct{}
	order []string
}

func newLinkSet() *linkSet {
	return &linkSet{seen: make(map[string]struct{})}
}

// addAll inserts links and reports how many were new.
func (s *linkSet) addAll(links []string) int {
	added := 0
	for _, link := range links {
		if _, ok := s.seen[link]; ok {
			continue
		}
		s.seen[link] = struct{}{}
		s.order = append(s.order, link)
		added++
	}
	return added
}

func (s *linkSet) slice() []string {
	return append([]string(nil), s.order...)
}
