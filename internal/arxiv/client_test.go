package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <entry>
    <id>http://arxiv.org/abs/2303.08774v1</id>
    <title>GPT-4 Technical Report</title>
    <summary>  We report the development of GPT-4.
</summary>
    <published>2023-03-15T17:15:04Z</published>
    <author><name>OpenAI</name></author>
    <link href="http://arxiv.org/abs/2303.08774v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2303.08774v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All
 You Need</title>
    <summary>The dominant sequence transduction models.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func TestSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFixture))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	results, err := c.Search(context.Background(), "attention transformers", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Contains(t, gotQuery, "search_query=all%3Aattention+transformers")
	require.Contains(t, gotQuery, "max_results=2")
	require.Contains(t, gotQuery, "sortBy=relevance")

	first := results[0]
	require.Equal(t, "2303.08774v1", first.PaperID)
	require.Equal(t, "GPT-4 Technical Report", first.Title)
	require.Equal(t, "We report the development of GPT-4.", first.Abstract)
	require.Equal(t, "http://arxiv.org/pdf/2303.08774v1", first.PDFURL)
	require.Equal(t, "http://arxiv.org/abs/2303.08774v1", first.EntryID)
	require.Equal(t, []string{"OpenAI"}, first.Authors)
	require.NotNil(t, first.Published)
	require.Equal(t, "arXiv", first.Source)

	second := results[1]
	require.Equal(t, "1706.03762v7", second.PaperID)
	require.Equal(t, "Attention Is All You Need", second.Title, "embedded newlines collapsed")
	require.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, second.Authors)
}

func TestSearchDefaultsMaxResults(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFixture))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	_, err := c.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	require.Contains(t, gotQuery, "max_results=5")
}

func TestSearchUpstreamFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop())
	_, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
}
