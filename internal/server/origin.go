package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Tyrowin/termchat/internal/logger"
)

// originPolicy is the CheckOrigin hook of the WebSocket upgrader. Origins are
// compared as lower-case "scheme://host[:port]"; "*" admits any well-formed
// origin. Requests without an Origin header never pass.
type originPolicy struct {
	any     bool
	origins map[string]bool
}

func newOriginPolicy(configured []string) *originPolicy {
	p := &originPolicy{origins: make(map[string]bool, len(configured))}
	for _, raw := range configured {
		switch raw = strings.TrimSpace(raw); raw {
		case "":
		case "*":
			p.any = true
		default:
			if key, ok := originKey(raw); ok {
				p.origins[key] = true
			} else {
				logger.Warn("Ignoring invalid origin in configuration: %q", raw)
			}
		}
	}
	return p
}

// originKey reduces an Origin value to the form stored in the policy.
func originKey(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

func (p *originPolicy) isAllowed(r *http.Request) bool {
	key, ok := originKey(r.Header.Get("Origin"))
	return ok && (p.any || p.origins[key])
}

func (p *originPolicy) check(r *http.Request) bool {
	ok := p.isAllowed(r)
	if !ok {
		logger.Warn("Blocked WebSocket upgrade from %s with origin %q", r.RemoteAddr, r.Header.Get("Origin"))
	}
	return ok
}
