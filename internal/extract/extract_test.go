package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestExtractTitleFallbackChain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "page title preferred",
			body: `<h1>Site</h1><h1 class="page-title"> Securing the Border </h1>`,
			want: "Securing the Border",
		},
		{
			name: "any h1",
			body: `<header><h1>Restoring Names</h1></header>`,
			want: "Restoring Names",
		},
		{
			name: "empty page title falls through",
			body: `<h1 class="page-title">  </h1>`,
			want: UnknownTitle,
		},
		{
			name: "no heading",
			body: `<p>hello</p>`,
			want: UnknownTitle,
		},
	}

	extractor := New(DefaultPlaceholders)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := extractor.Extract([]byte("<html><body>" + tc.body + "</body></html>"))
			require.NoError(t, err)
			require.Equal(t, tc.want, res.Title)
		})
	}
}

func TestExtractContentFallbackChain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "entry content",
			body: `<article>outer</article><div class="entry-content"><p>By the authority</p><p> Sec. 1 </p></div>`,
			want: "By the authority\nSec. 1",
		},
		{
			name: "page content",
			body: `<article>outer</article><div class="page-content__content"><p>Body</p></div>`,
			want: "Body",
		},
		{
			name: "article",
			body: `<article><h2>Heading</h2><p>Text <em>inline</em></p><script>var x</script></article>`,
			want: "Heading\nText\ninline",
		},
		{
			name: "empty entry content wins",
			body: `<article><nav>Home Share Print</nav><div class="entry-content"><img></div></article>`,
			want: "",
		},
		{
			name: "empty page content wins over article",
			body: `<article><p>Share</p><div class="page-content__content"></div></article>`,
			want: "",
		},
		{
			name: "nothing",
			body: `<main><p>free</p></main>`,
			want: "",
		},
	}

	extractor := New(DefaultPlaceholders)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := extractor.Extract([]byte("<html><body>" + tc.body + "</body></html>"))
			require.NoError(t, err)
			require.Equal(t, tc.want, res.Content)
		})
	}
}

func TestExtractFlagsPlaceholders(t *testing.T) {
	t.Parallel()

	extractor := New(DefaultPlaceholders)
	for _, title := range DefaultPlaceholders {
		res, err := extractor.Extract([]byte(`<h1 class="page-title">` + strings.ReplaceAll(title, "&", "&amp;") + `</h1>`))
		require.NoError(t, err)
		require.Equal(t, title, res.Title)
		require.True(t, res.Placeholder, title)
	}

	res, err := extractor.Extract([]byte(`<h1>Unleashing American Energy</h1>`))
	require.NoError(t, err)
	require.False(t, res.Placeholder)
	require.Len(t, extractor.Placeholders(), len(DefaultPlaceholders))
}

func TestFirstReturnsFallback(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>x</p>"))
	require.NoError(t, err)

	calls := 0
	var miss Rule[int] = func(*goquery.Document) (int, bool) { calls++; return 0, false }
	var hit Rule[int] = func(*goquery.Document) (int, bool) { calls++; return 7, true }

	require.Equal(t, -1, First(doc, -1, miss, miss))
	require.Equal(t, 7, First(doc, -1, miss, hit, miss))
	require.Equal(t, 4, calls)
}

func TestIsCategoryURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsCategoryURL("https://www.whitehouse.gov/presidential-actions/", DefaultCategorySuffixes))
	require.True(t, IsCategoryURL("https://www.whitehouse.gov/presidential-actions/executive-orders/", DefaultCategorySuffixes))
	require.False(t, IsCategoryURL("https://www.whitehouse.gov/presidential-actions/2025/01/order/", DefaultCategorySuffixes))
}
