package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/morezero/auction-admin/internal/config"
	"github.com/morezero/auction-admin/pkg/ajax"
	"github.com/morezero/auction-admin/pkg/credentials"
	"github.com/morezero/auction-admin/pkg/navigation"
)

const siteLogPrefix = "server:site"

// Site is one WordPress installation with resolved credentials. Dispatchers and the
// navigation guard are built from it.
type Site struct {
	cfg    *config.Config
	client *http.Client
	creds  ajax.Credentials
}

// Connect resolves credentials for cfg.SiteURL. When AUCTION_ADMIN_PAGE_URL is set the admin page
// is fetched and searched; a failed fetch degrades to configuration-only resolution.
func Connect(ctx context.Context, cfg *config.Config, client *http.Client) (*Site, error) {
	if err := cfg.ValidateForSite(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{}
	}

	page := credentials.EmptyPage()
	if cfg.AdminPageURL != "" {
		loaded, err := credentials.LoadPage(ctx, client, cfg.AdminPageURL, cfg.Cookie)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - admin page unavailable, using configuration only: %v", siteLogPrefix, err))
		} else {
			page = loaded
		}
	}

	resolver := credentials.NewResolver(cfg.SiteURL, credentials.DefaultStrategies(credentials.Options{
		Token:        cfg.Nonce,
		EndpointURL:  cfg.AjaxURL,
		ScriptObject: cfg.ScriptObject,
		TokenMeta:    cfg.TokenMeta,
		EndpointMeta: cfg.EndpointMeta,
		TokenField:   cfg.TokenField,
	})...)
	creds := resolver.Resolve(page)
	slog.Info(fmt.Sprintf("%s - Using endpoint %s (token present: %v)", siteLogPrefix, creds.EndpointURL, creds.HasToken()))

	return &Site{cfg: cfg, client: client, creds: creds}, nil
}

// Credentials returns the resolved pair.
func (s *Site) Credentials() ajax.Credentials {
	return s.creds
}

// Dispatcher builds an independent dispatcher for one control or panel.
func (s *Site) Dispatcher(name string) *ajax.Dispatcher {
	return ajax.NewDispatcher(s.creds, ajax.Options{
		Name:    name,
		Timeout: s.cfg.RequestTimeout,
		Client:  s.client,
		Cookie:  s.cfg.Cookie,
	})
}

// Guard builds the car navigation guard with its own dispatcher.
func (s *Site) Guard(nav navigation.Navigator) (*navigation.Guard, error) {
	return navigation.NewGuard(s.Dispatcher("open-car"), navigation.Options{
		SiteURL:         s.cfg.SiteURL,
		Markets:         s.cfg.Markets,
		TrustedSuffixes: s.cfg.TrustedRedirectSuffixes,
		FallbackDelay:   s.cfg.FallbackDelay,
		Navigator:       nav,
	})
}
