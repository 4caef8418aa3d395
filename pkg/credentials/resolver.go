package credentials

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/morezero/auction-admin/pkg/ajax"
)

const logPrefix = "credentials:resolver"

// DefaultEndpointPath is appended to the site URL when no source names an endpoint.
const DefaultEndpointPath = "/wp-admin/admin-ajax.php"

var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidToken reports whether s is a non-empty alphanumeric token.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// Resolver evaluates strategies in order and keeps the first valid value.
type Resolver struct {
	strategies []Strategy
	siteURL    string
}

// NewResolver creates a Resolver. siteURL is used for the default endpoint.
func NewResolver(siteURL string, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, siteURL: strings.TrimRight(siteURL, "/")}
}

// Options names the page sources used by DefaultStrategies.
type Options struct {
	Token        string
	EndpointURL  string
	ScriptObject string
	TokenMeta    string
	EndpointMeta string
	TokenField   string
}

// DefaultStrategies returns the standard order: configuration, script object, meta tag, hidden field.
func DefaultStrategies(o Options) []Strategy {
	return []Strategy{
		StaticStrategy{TokenValue: o.Token, EndpointValue: o.EndpointURL},
		ScriptObjectStrategy{Object: o.ScriptObject},
		MetaTagStrategy{TokenMeta: o.TokenMeta, EndpointMeta: o.EndpointMeta},
		HiddenFieldStrategy{TokenField: o.TokenField},
	}
}

// Resolve returns the credential pair for page. It never fails: a missing token yields ""
// and requests are left for the server to reject.
func (r *Resolver) Resolve(page *Page) ajax.Credentials {
	return ajax.Credentials{
		EndpointURL: r.ResolveEndpoint(page),
		Token:       r.ResolveToken(page),
	}
}

// ResolveToken returns the first token that matches ^[a-zA-Z0-9]+$ as found, or "".
// Surrounding whitespace makes a token invalid.
func (r *Resolver) ResolveToken(page *Page) string {
	for _, s := range r.strategies {
		tok := s.Token(page)
		if tok == "" {
			continue
		}
		if !ValidToken(tok) {
			slog.Debug(fmt.Sprintf("%s - %s yielded an invalid token, skipping", logPrefix, s.Name()))
			continue
		}
		slog.Debug(fmt.Sprintf("%s - token resolved from %s", logPrefix, s.Name()))
		return tok
	}
	slog.Debug(fmt.Sprintf("%s - no valid security token found; requests will be rejected by the server", logPrefix))
	return ""
}

// ResolveEndpoint returns the first non-empty endpoint URL, falling back to the default path.
func (r *Resolver) ResolveEndpoint(page *Page) string {
	for _, s := range r.strategies {
		if ep := strings.TrimSpace(s.Endpoint(page)); ep != "" {
			return ep
		}
	}
	return r.siteURL + DefaultEndpointPath
}
