package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction_monitor/config"
	"auction_monitor/httputil"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Query().Get("pagina") == "9" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())

	html, err := f.Fetch(context.Background(), srv.URL+"/imoveis")
	require.NoError(t, err)
	assert.Contains(t, html, "ok")
	assert.Equal(t, userAgent, gotUA)

	_, err = f.Fetch(context.Background(), srv.URL+"/imoveis?pagina=9")
	assert.ErrorContains(t, err, "status 404")
	assert.NoError(t, f.Close())
}

func TestNewFetcher_PicksByConfig(t *testing.T) {
	clients := httputil.NewClients(&config.ProxyConfig{})

	f := NewFetcher(&config.SiteConfig{Fetcher: config.FetcherHTTP}, clients, &config.ProxyConfig{})
	assert.IsType(t, &HTTPFetcher{}, f)

	f = NewFetcher(&config.SiteConfig{Fetcher: config.FetcherBrowser}, clients, &config.ProxyConfig{URL: "http://proxy:8080"})
	bf, ok := f.(*BrowserFetcher)
	require.True(t, ok)
	assert.Equal(t, "http://proxy:8080", bf.opts.ProxyURL)
	assert.NoError(t, bf.Close())
}
