package credentials

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy is one named credential source. Token and Endpoint return "" when the source has no value.
type Strategy interface {
	Name() string
	Token(p *Page) string
	Endpoint(p *Page) string
}

// StaticStrategy supplies values from configuration.
type StaticStrategy struct {
	TokenValue    string
	EndpointValue string
}

func (s StaticStrategy) Name() string { return "config" }

func (s StaticStrategy) Token(*Page) string { return s.TokenValue }

func (s StaticStrategy) Endpoint(*Page) string { return s.EndpointValue }

// ScriptObjectStrategy reads the object printed by wp_localize_script, e.g.
//
//	var carAuctionAjax = {"ajax_url":"https:\/\/site\/wp-admin\/admin-ajax.php","nonce":"a1b2c3"};
type ScriptObjectStrategy struct {
	// Object is the JavaScript variable name.
	Object string
}

type scriptObject struct {
	AjaxURL    string `json:"ajax_url"`
	AjaxURLAlt string `json:"ajaxurl"`
	Nonce      string `json:"nonce"`
}

func (s ScriptObjectStrategy) Name() string { return "script:" + s.Object }

func (s ScriptObjectStrategy) Token(p *Page) string {
	obj, ok := s.lookup(p)
	if !ok {
		return ""
	}
	return obj.Nonce
}

func (s ScriptObjectStrategy) Endpoint(p *Page) string {
	obj, ok := s.lookup(p)
	if !ok {
		return ""
	}
	if obj.AjaxURL != "" {
		return obj.AjaxURL
	}
	return obj.AjaxURLAlt
}

func (s ScriptObjectStrategy) lookup(p *Page) (scriptObject, bool) {
	if p == nil || s.Object == "" {
		return scriptObject{}, false
	}
	re := regexp.MustCompile(`(?:\b(?:var|let|const)\s+|\bwindow\.)` + regexp.QuoteMeta(s.Object) + `\s*=\s*`)
	for _, script := range p.Scripts() {
		loc := re.FindStringIndex(script)
		if loc == nil {
			continue
		}
		rest := script[loc[1]:]
		if !strings.HasPrefix(rest, "{") {
			continue
		}
		var obj scriptObject
		if err := json.NewDecoder(strings.NewReader(rest)).Decode(&obj); err != nil {
			continue
		}
		return obj, true
	}
	return scriptObject{}, false
}

// MetaTagStrategy reads <meta name="..." content="..."> tags.
type MetaTagStrategy struct {
	TokenMeta    string
	EndpointMeta string
}

func (s MetaTagStrategy) Name() string { return "meta:" + s.TokenMeta }

func (s MetaTagStrategy) Token(p *Page) string {
	if p == nil || s.TokenMeta == "" {
		return ""
	}
	v, _ := p.Meta(s.TokenMeta)
	return v
}

func (s MetaTagStrategy) Endpoint(p *Page) string {
	if p == nil || s.EndpointMeta == "" {
		return ""
	}
	v, _ := p.Meta(s.EndpointMeta)
	return v
}

// HiddenFieldStrategy reads a hidden <input> by id or name.
type HiddenFieldStrategy struct {
	TokenField    string
	EndpointField string
}

func (s HiddenFieldStrategy) Name() string { return "field:" + s.TokenField }

func (s HiddenFieldStrategy) Token(p *Page) string {
	if p == nil || s.TokenField == "" {
		return ""
	}
	v, _ := p.Field(s.TokenField, true)
	return v
}

func (s HiddenFieldStrategy) Endpoint(p *Page) string {
	if p == nil || s.EndpointField == "" {
		return ""
	}
	v, _ := p.Field(s.EndpointField, true)
	return v
}
