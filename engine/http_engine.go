package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// ErrScriptShell is returned by Navigate when the fetched document only
// renders its content through JavaScript.
var ErrScriptShell = errors.New("engine: page renders only with javascript")

// HTTPEngine serves sources whose pages render without JavaScript. A tab is
// a single GET: Navigate fetches the document and HTML/URL return it.
type HTTPEngine struct {
	client         *http.Client
	maxBody        int64
	acceptLanguage string
	activeTabs     atomic.Int32
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
func NewHTTPEngine(httpCfg config.HTTPConfig, browserCfg config.BrowserConfig) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext: dialTLSChrome,
	}
	if browserCfg.DefaultProxy != "" {
		if proxyURL, err := url.Parse(browserCfg.DefaultProxy); err == nil &&
			(proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return newHTTPEngine(&http.Client{
		Transport: transport,
		Timeout:   httpCfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}, httpCfg.MaxBodyBytes, browserCfg.AcceptLanguage)
}

func newHTTPEngine(client *http.Client, maxBody int64, acceptLanguage string) *HTTPEngine {
	if maxBody <= 0 {
		maxBody = 5 << 20
	}
	return &HTTPEngine{client: client, maxBody: maxBody, acceptLanguage: acceptLanguage}
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *HTTPEngine) Name() string { return models.EngineHTTP }

// Open ignores opts: a plain GET loads no subresources to block.
func (e *HTTPEngine) Open(ctx context.Context, _ TabOptions) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.activeTabs.Add(1)
	return &httpTab{engine: e}, nil
}

// ActiveTabs returns the number of open tabs.
func (e *HTTPEngine) ActiveTabs() int {
	return int(e.activeTabs.Load())
}

type httpTab struct {
	engine *HTTPEngine

	mu       sync.Mutex
	body     string
	finalURL string

	closeOnce sync.Once
	closed    atomic.Bool
}

func (t *httpTab) Navigate(ctx context.Context, target string) error {
	if t.closed.Load() {
		return ErrTabClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("http_engine: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	if t.engine.acceptLanguage != "" {
		req.Header.Set("Accept-Language", t.engine.acceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := t.engine.client.Do(req)
	if err != nil {
		return fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.engine.maxBody))
	if err != nil {
		return fmt.Errorf("http_engine: read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return fmt.Errorf("http_engine: non-html or error status %d (content-type: %s)", resp.StatusCode, ct)
	}
	if looksLikeShell(body) {
		slog.Debug("http_engine: script shell, source needs the browser engine", "url", target)
		return fmt.Errorf("http_engine: %s: %w", target, ErrScriptShell)
	}

	t.mu.Lock()
	t.body = string(body)
	t.finalURL = resp.Request.URL.String()
	t.mu.Unlock()
	return nil
}

func (t *httpTab) HTML(ctx context.Context) (string, error) {
	if t.closed.Load() {
		return "", ErrTabClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.body, nil
}

func (t *httpTab) URL(ctx context.Context) (string, error) {
	if t.closed.Load() {
		return "", ErrTabClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalURL, nil
}

func (t *httpTab) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.engine.activeTabs.Add(-1)
	})
	return nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// looksLikeShell reports whether the body has scripts but almost no visible
// text, the shape of a page whose content is rendered client-side.
func looksLikeShell(body []byte) bool {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	visible := 0
	scripts := 0
	skipDepth := 0
	inBody := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return scripts > 0 && visible < 200
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script":
				scripts++
				skipDepth++
			case "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				visible += len(strings.TrimSpace(string(tokenizer.Text())))
			}
		}
	}
}
