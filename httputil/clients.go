package httputil

import (
	"net/http"
	"net/url"
	"time"

	"auction_monitor/config"
)

type Clients struct {
	Scraping *http.Client // proxied when PROXY_URL is set, for the auction site
	API      *http.Client // direct, for Supabase
}

func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}

// ProxyHost returns the proxy host for logging, or "direct".
func ProxyHost(proxyCfg *config.ProxyConfig) string {
	if proxyCfg == nil || proxyCfg.URL == "" {
		return "direct"
	}
	u, err := url.Parse(proxyCfg.URL)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}
