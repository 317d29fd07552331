package shared

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// HTTPOptions configures a scraping client created with [NewHTTPClient].
type HTTPOptions struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	InsecureTLS bool
	// Transport replaces the default transport, mostly for tests.
	Transport http.RoundTripper
}

// NewHTTPClient builds a [resty.Client] with a cookie jar and browser-like TLS fingerprint.
//
// Each operation creates its own client, so cookies never leak between runs.
func NewHTTPClient(opts HTTPOptions) *resty.Client {
	client := resty.New()
	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}

	jar, _ := cookiejar.New(nil)
	client.SetCookieJar(jar)

	transport := opts.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		transport = cloudflarebp.AddCloudFlareByPass(base)
		// the bypass swaps in its own TLS config, so verification is relaxed afterwards
		if opts.InsecureTLS {
			if base.TLSClientConfig == nil {
				base.TLSClientConfig = &tls.Config{}
			}
			base.TLSClientConfig.InsecureSkipVerify = true
		}
	}
	client.GetClient().Transport = transport

	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	return client
}
