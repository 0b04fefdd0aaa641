package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewsAPIHeadlines(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"status":"ok","articles":[
		{"title":"BTC <b>soars</b>","description":"Up 5%"},
		{"title":"","description":"skipped"},
		{"title":"ETH flat","description":null},
		{"title":"SOL dips","description":"Down"}
	]}`, func(r *http.Request) {
		assert.Equal(t, "/v2/everything", r.URL.Path)
		assert.Equal(t, "cryptocurrency", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
	})

	src := NewNewsAPI(NewsAPIOptions{BaseURL: srv.URL + "/v2/", APIKey: "key", Query: "cryptocurrency", Limit: 2, HTTP: srv.Client()})
	got, err := src.Headlines(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC soars", got[0].Title)
	assert.Equal(t, "Up 5%", got[0].Description)
	assert.Equal(t, "ETH flat", got[1].Title)
	assert.Empty(t, got[1].Description)
}

func TestNewsAPIError(t *testing.T) {
	srv := serve(t, http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`, nil)
	src := NewNewsAPI(NewsAPIOptions{BaseURL: srv.URL, Query: "x", HTTP: srv.Client()})
	_, err := src.Headlines(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}

func TestNewsAPIEmpty(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"status":"ok","articles":[]}`, nil)
	src := NewNewsAPI(NewsAPIOptions{BaseURL: srv.URL, Query: "x", HTTP: srv.Client()})
	_, err := src.Headlines(context.Background())
	assert.ErrorIs(t, err, ErrNoHeadlines)
}

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Crypto</title>
<item><title>Bitcoin &amp; friends</title><description>&lt;p&gt;Prices &lt;script&gt;alert(1)&lt;/script&gt;rose&lt;/p&gt;</description></item>
<item><title>Second</title><description>two</description></item>
<item><title>Third</title><description>three</description></item>
</channel></rss>`

func TestRSSHeadlines(t *testing.T) {
	srv := serve(t, http.StatusOK, feedXML, nil)
	src := NewRSS(RSSOptions{FeedURL: srv.URL + "/feed.xml", Limit: 2, HTTP: srv.Client()})

	got, err := src.Headlines(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bitcoin & friends", got[0].Title)
	assert.Equal(t, "Prices rose", got[0].Description)
	assert.Equal(t, "Second", got[1].Title)
}

func TestRSSRejectsBadFeed(t *testing.T) {
	srv := serve(t, http.StatusOK, "not a feed", nil)
	src := NewRSS(RSSOptions{FeedURL: srv.URL, HTTP: srv.Client()})
	_, err := src.Headlines(context.Background())
	assert.Error(t, err)

	srv = serve(t, http.StatusBadGateway, "", nil)
	src = NewRSS(RSSOptions{FeedURL: srv.URL, HTTP: srv.Client()})
	_, err = src.Headlines(context.Background())
	assert.ErrorContains(t, err, "502")
}

func TestSafeClientBlocksLoopback(t *testing.T) {
	srv := serve(t, http.StatusOK, feedXML, nil)
	src := NewRSS(RSSOptions{FeedURL: srv.URL})
	_, err := src.Headlines(context.Background())
	assert.Error(t, err)
}
