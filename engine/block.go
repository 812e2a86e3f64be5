package engine

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/offerscout/metrics"
)

// Reasons a request was blocked, as reported by BlockPolicy.Blocks.
const (
	BlockedByType   = "resource_type"
	BlockedByDomain = "domain"
)

// BlockPolicy decides which requests a browser tab fails before they leave
// the browser. A zero BlockPolicy blocks nothing.
type BlockPolicy struct {
	types   map[proto.NetworkResourceType]struct{}
	domains map[string]struct{}
}

// NewBlockPolicy builds a policy from resource type names ("Image", "Font")
// and domains. A domain also covers all of its subdomains.
func NewBlockPolicy(types, domains []string) BlockPolicy {
	return BlockPolicy{}.With(types, domains)
}

// With returns a copy of p that also blocks types and domains. p itself is
// never modified, so one engine-wide policy can be extended per tab.
func (p BlockPolicy) With(types, domains []string) BlockPolicy {
	out := BlockPolicy{
		types:   make(map[proto.NetworkResourceType]struct{}, len(p.types)+len(types)),
		domains: make(map[string]struct{}, len(p.domains)+len(domains)),
	}
	for t := range p.types {
		out.types[t] = struct{}{}
	}
	for d := range p.domains {
		out.domains[d] = struct{}{}
	}
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			out.types[proto.NetworkResourceType(t)] = struct{}{}
		}
	}
	for _, d := range domains {
		if d = normalizeDomain(d); d != "" {
			out.domains[d] = struct{}{}
		}
	}
	return out
}

// Empty reports whether the policy lets everything through.
func (p BlockPolicy) Empty() bool {
	return len(p.types) == 0 && len(p.domains) == 0
}

// Blocks reports whether a request of type rt for rawURL is dropped, and
// why. Resource types are checked before hosts.
func (p BlockPolicy) Blocks(rt proto.NetworkResourceType, rawURL string) (string, bool) {
	if _, ok := p.types[rt]; ok {
		return BlockedByType, true
	}
	if len(p.domains) == 0 {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	for host != "" {
		if _, ok := p.domains[host]; ok {
			return BlockedByDomain, true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return "", false
}

// install routes every request of page through p. It returns nil when there
// is nothing to block; otherwise the tab stops the router on close.
func (p BlockPolicy) install(page *rod.Page, source string) *rod.HijackRouter {
	if p.Empty() {
		return nil
	}
	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if reason, blocked := p.Blocks(ctx.Request.Type(), ctx.Request.URL().String()); blocked {
			metrics.BlockedRequestsTotal.WithLabelValues(source, reason).Inc()
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	// Run blocks until Stop.
	go router.Run()
	return router
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "*.")
	return strings.Trim(d, ".")
}
