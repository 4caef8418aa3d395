// Package navigation opens car detail pages through the plugin's check-create-redirect action,
// refusing to send the browser anywhere outside the site or its trusted hosts.
package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/morezero/auction-admin/pkg/actions"
	"github.com/morezero/auction-admin/pkg/ajax"
)

const logPrefix = "navigation:guard"

// DefaultFallbackDelay is how long a failed or rejected redirect waits before the preview fallback.
const DefaultFallbackDelay = time.Second

// DefaultMarkets is the market enum used when none is configured.
var DefaultMarkets = []string{"main", "korea", "japan", "china"}

// Decision sources.
const (
	SourceServer  = "server"
	SourcePreview = "preview"
)

// Decision describes what Open did.
type Decision struct {
	Target    string
	Source    string
	Navigated bool
	// Reason is set when the server redirect was not used.
	Reason string
}

// Options configures a Guard.
type Options struct {
	SiteURL         string
	Markets         []string
	TrustedSuffixes []string
	FallbackDelay   time.Duration
	Navigator       Navigator
}

// Guard validates car/market pairs and redirect targets before navigating.
type Guard struct {
	dispatcher actions.Dispatcher
	site       *url.URL
	markets    map[string]bool
	suffixes   []string
	delay      time.Duration
	navigator  Navigator
}

// NewGuard builds a Guard. SiteURL must be an absolute http(s) URL.
func NewGuard(d actions.Dispatcher, o Options) (*Guard, error) {
	site, err := url.Parse(strings.TrimSpace(o.SiteURL))
	if err != nil {
		return nil, fmt.Errorf("%s - invalid site url: %w", logPrefix, err)
	}
	if (site.Scheme != "http" && site.Scheme != "https") || site.Host == "" {
		return nil, fmt.Errorf("%s - site url must be absolute http(s): %q", logPrefix, o.SiteURL)
	}

	markets := o.Markets
	if len(markets) == 0 {
		markets = DefaultMarkets
	}
	set := make(map[string]bool, len(markets))
	for _, m := range markets {
		if m = strings.TrimSpace(m); m != "" {
			set[m] = true
		}
	}

	var suffixes []string
	for _, s := range o.TrustedSuffixes {
		s = strings.ToLower(strings.Trim(strings.TrimSpace(s), "."))
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}

	delay := o.FallbackDelay
	if delay < 0 {
		delay = 0
	}
	nav := o.Navigator
	if nav == nil {
		nav = &RecordingNavigator{}
	}

	return &Guard{
		dispatcher: d,
		site:       site,
		markets:    set,
		suffixes:   suffixes,
		delay:      delay,
		navigator:  nav,
	}, nil
}

// ValidMarket reports whether market is in the configured enum.
func (g *Guard) ValidMarket(market string) bool {
	return g.markets[market]
}

// Open checks raw inputs, asks the server to ensure the car page exists, and navigates to the
// server's redirect or, failing that, to the locally built preview URL. Validation failures
// return actions.ErrInvalidParameters without any request. A busy dispatcher returns
// ajax.ErrRequestInFlight.
func (g *Guard) Open(ctx context.Context, carID, market string) (*Decision, error) {
	if !actions.ValidIdentifier(carID) || !g.ValidMarket(market) {
		slog.Warn(fmt.Sprintf("%s - rejected car=%q market=%q", logPrefix, carID, market))
		return nil, actions.ErrInvalidParameters
	}
	carID = ajax.Sanitize(carID)
	market = ajax.Sanitize(market)

	outcome, err := actions.CheckCreateRedirect(ctx, g.dispatcher, carID, market)
	if errors.Is(err, ajax.ErrRequestInFlight) {
		return nil, err
	}

	reason := ""
	var redirect *actions.Redirect
	if err != nil {
		reason = err.Error()
	} else {
		ajax.Route(outcome, ajax.Handlers{
			OnSuccess: func(json.RawMessage) {
				var r actions.Redirect
				if derr := outcome.Decode(&r); derr != nil {
					reason = derr.Error()
					return
				}
				redirect = &r
			},
			OnFailure: func(f *ajax.Failure) { reason = f.Error() },
		})
	}

	if redirect != nil {
		if target, ok := g.Trusted(redirect.RedirectURL); ok {
			if err := g.navigator.Navigate(ctx, target); err != nil {
				return nil, fmt.Errorf("%s - navigate: %w", logPrefix, err)
			}
			slog.Debug(fmt.Sprintf("%s - navigated to %s", logPrefix, target))
			return &Decision{Target: target, Source: SourceServer, Navigated: true}, nil
		}
		reason = "untrusted redirect"
		slog.Warn(fmt.Sprintf("%s - rejected redirect %q", logPrefix, redirect.RedirectURL))
	} else if reason == "" {
		reason = "no redirect"
	}

	return g.fallback(ctx, carID, market, reason)
}

func (g *Guard) fallback(ctx context.Context, carID, market, reason string) (*Decision, error) {
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	preview := g.PreviewURL(carID, market)
	target, ok := g.Trusted(preview)
	if !ok {
		slog.Warn(fmt.Sprintf("%s - preview url %q failed validation", logPrefix, preview))
		return &Decision{Source: SourcePreview, Reason: reason}, nil
	}
	if err := g.navigator.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("%s - navigate: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - fell back to preview %s (%s)", logPrefix, target, reason))
	return &Decision{Target: target, Source: SourcePreview, Navigated: true, Reason: reason}, nil
}

// PreviewURL builds <site>/cars/<market>/<id>/?preview=1.
func (g *Guard) PreviewURL(carID, market string) string {
	u := *g.site
	u.Path = path.Join("/", u.Path, "cars", market, carID) + "/"
	u.RawPath = ""
	u.RawQuery = "preview=1"
	u.Fragment = ""
	return u.String()
}

// Trusted resolves raw against the site and reports whether the result is same-origin or on a
// trusted host suffix. The resolved absolute URL is returned.
func (g *Guard) Trusted(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u := g.site.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.User != nil {
		return "", false
	}
	if strings.EqualFold(u.Scheme, g.site.Scheme) && strings.EqualFold(u.Host, g.site.Host) {
		return u.String(), true
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range g.suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return u.String(), true
		}
	}
	return "", false
}
