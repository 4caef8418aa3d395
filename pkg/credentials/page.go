// Package credentials resolves the admin-ajax endpoint and security token for an admin page.
package credentials

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const pageLogPrefix = "credentials:page"

// Input is one <input> element on the page.
type Input struct {
	ID    string
	Name  string
	Type  string
	Value string
}

// Page is the subset of an admin page's markup the strategies read.
type Page struct {
	metas   map[string]string
	inputs  []Input
	scripts []string
}

// EmptyPage returns a page with no markup. Only configuration-backed strategies yield values for it.
func EmptyPage() *Page {
	return &Page{metas: map[string]string{}}
}

// ParsePage indexes meta tags, input fields and inline scripts from HTML.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse page: %w", pageLogPrefix, err)
	}

	p := EmptyPage()
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if name := attr(n, "name"); name != "" {
					if _, seen := p.metas[name]; !seen {
						p.metas[name] = attr(n, "content")
					}
				}
			case "input":
				p.inputs = append(p.inputs, Input{
					ID:    attr(n, "id"),
					Name:  attr(n, "name"),
					Type:  strings.ToLower(attr(n, "type")),
					Value: attr(n, "value"),
				})
			case "script":
				if attr(n, "src") == "" {
					var sb strings.Builder
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						if c.Type == html.TextNode {
							sb.WriteString(c.Data)
						}
					}
					if sb.Len() > 0 {
						p.scripts = append(p.scripts, sb.String())
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return p, nil
}

// LoadPage fetches an admin page and parses it. cookie, when set, is sent as the Cookie header.
func LoadPage(ctx context.Context, client *http.Client, pageURL, cookie string) (*Page, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build request: %w", pageLogPrefix, err)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to fetch %s: %w", pageLogPrefix, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s - fetch %s returned %d", pageLogPrefix, pageURL, resp.StatusCode)
	}

	slog.Debug(fmt.Sprintf("%s - Loaded admin page %s", pageLogPrefix, pageURL))
	return ParsePage(resp.Body)
}

// Meta returns the content of the first <meta name=...> tag with the given name.
func (p *Page) Meta(name string) (string, bool) {
	v, ok := p.metas[name]
	return v, ok
}

// Field returns the value of the first input whose id or name matches.
func (p *Page) Field(idOrName string, hiddenOnly bool) (string, bool) {
	for _, in := range p.inputs {
		if hiddenOnly && in.Type != "hidden" {
			continue
		}
		if in.ID == idOrName || in.Name == idOrName {
			return in.Value, true
		}
	}
	return "", false
}

// Scripts returns the inline script bodies in document order.
func (p *Page) Scripts() []string {
	return p.scripts
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
