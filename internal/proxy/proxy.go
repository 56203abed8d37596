package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// MaxInterceptSize caps the response bodies handed to the interceptor;
// larger bodies are streamed through untouched
const MaxInterceptSize = 16 << 20

// Proxy forwards requests to the upstream API and runs matched responses
// through an Interceptor
type Proxy struct {
	upstream    *url.URL
	endpoints   []string
	interceptor Interceptor
	rp          *httputil.ReverseProxy
	log         zerolog.Logger
}

// New creates a proxy to upstream. Responses to paths ending in one of
// endpoints are intercepted.
func New(upstream string, endpoints []string, ic Interceptor, log zerolog.Logger) (*Proxy, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", upstream, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: scheme and host required", upstream)
	}

	p := &Proxy{
		upstream:    u,
		endpoints:   endpoints,
		interceptor: ic,
		log:         log.With().Str("component", "proxy").Logger(),
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.errorHandler,
	}
	return p, nil
}

// ServeHTTP implements http.Handler
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

// Matches reports whether responses for path are intercepted
func (p *Proxy) Matches(path string) bool {
	path = strings.TrimRight(path, "/")
	for _, ep := range p.endpoints {
		if ep != "" && strings.HasSuffix(path, strings.TrimRight(ep, "/")) {
			return true
		}
	}
	return false
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.upstream)
	pr.SetXForwarded()
	if p.Matches(pr.In.URL.Path) {
		// let the transport negotiate and decode compression itself
		pr.Out.Header.Del("Accept-Encoding")
	}
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK || resp.Request == nil || !p.Matches(resp.Request.URL.Path) {
		return nil
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		p.log.Warn().Str("encoding", enc).Msg("encoded response passed through")
		return nil
	}
	if resp.ContentLength > MaxInterceptSize {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxInterceptSize+1))
	if err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("read upstream body: %w", err)
	}
	if len(body) > MaxInterceptSize {
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return nil
	}
	_ = resp.Body.Close()

	out, err := p.interceptor.Intercept(resp.Request.Context(), resp.Request.URL.Path, body)
	if err != nil {
		p.log.Warn().Err(err).Str("path", resp.Request.URL.Path).Msg("intercept failed, passing response through")
		out = body
	}

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

type readCloser struct {
	io.Reader
	io.Closer
}
