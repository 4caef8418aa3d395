package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/morezero/auction-admin/pkg/actions"
	"github.com/morezero/auction-admin/pkg/ajax"
	"github.com/morezero/auction-admin/pkg/compat"
	"github.com/morezero/auction-admin/pkg/panels"
	"github.com/morezero/auction-admin/pkg/uistate"
)

const handlersLogPrefix = "server:handlers"

// actionResponse is the JSON answer of POST /actions/{control}.
type actionResponse struct {
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Control *uistate.View `json:"control,omitempty"`
	Panel   *uistate.View `json:"panel,omitempty"`
}

// healthResponse is the JSON answer of GET /health.
type healthResponse struct {
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Compat    *compat.Report  `json:"compat,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// routes builds the dashboard mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome())
	mux.HandleFunc("GET /panels/{id}", s.handlePanel)
	mux.HandleFunc("POST /actions/{control}", s.handleAction)
	mux.HandleFunc("POST /cars/open", s.handleOpenCar)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.Handle("GET /ws", s.hub)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - encode response: %v", handlersLogPrefix, err))
	}
}

// statusFor maps dashboard errors to HTTP status codes. Server-reported failures are still a
// successful round trip for the dashboard and answer 200 with ok=false.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownControl):
		return http.StatusNotFound
	case errors.Is(err, actions.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, ajax.ErrRequestInFlight):
		return http.StatusConflict
	}
	var f *ajax.Failure
	if errors.As(err, &f) && f.IsTransport() {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

func formParams(r *http.Request) Params {
	p := Params{}
	if err := r.ParseForm(); err != nil {
		return p
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("control")
	err := s.dash.Trigger(r.Context(), id, formParams(r))

	resp := actionResponse{OK: err == nil}
	if err != nil {
		resp.Error = panels.FailureText(err)
	}
	if v, ok := s.dash.View(id); ok {
		resp.Control = &v
		for _, c := range s.dash.Controls() {
			if c.ID == id {
				if pv, ok := s.dash.View(c.Panel); ok {
					resp.Panel = &pv
				}
			}
		}
	}
	writeJSON(w, statusFor(err), resp)
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	v, ok := s.dash.View(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown panel"})
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, v.Label)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleOpenCar(w http.ResponseWriter, r *http.Request) {
	p := formParams(r)
	decision, err := s.dash.OpenCar(r.Context(), p["car_id"], p["market"])
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": panels.FailureText(err)})
		return
	}
	if !decision.Navigated {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Could not open the car page", "reason": decision.Reason})
		return
	}
	http.Redirect(w, r, decision.Target, http.StatusSeeOther)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is disabled (DATABASE_URL not set)"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	snaps, err := s.history.ListRecent(r.Context(), r.URL.Query().Get("panel"), limit)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - history: %v", handlersLogPrefix, err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	h := healthResponse{
		Status:    "healthy",
		Checks:    map[string]bool{"token": s.dash.site.Credentials().HasToken()},
		Compat:    s.dash.Compat(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.nc != nil {
		h.Checks["comms"] = s.nc.IsConnected()
	}
	if s.pool != nil {
		h.Checks["database"] = s.pool.Ping(ctx) == nil
	}
	for name, ok := range h.Checks {
		if !ok && name != "token" {
			h.Status = "unhealthy"
		}
	}

	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

// homeData is the data passed to the dashboard page template.
type homeData struct {
	Site        string
	Controls    []ControlInfo
	Panels      []uistate.View
	Markets     []string
	Compat      *compat.Report
	Navigations []string
	History     bool
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Funcs(template.FuncMap{
		// panel markup is produced by pkg/panels templates and already escaped
		"markup": func(m string) template.HTML { return template.HTML(m) },
	}).Parse(homePageTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		data := homeData{
			Site:        s.cfg.SiteURL,
			Controls:    s.dash.Controls(),
			Markets:     s.cfg.Markets,
			Compat:      s.dash.Compat(),
			Navigations: s.dash.Navigations(),
			History:     s.history != nil,
		}
		for _, id := range []string{PanelConnection, PanelQueue, PanelCron, PanelMessages} {
			if v, ok := s.dash.View(id); ok {
				data.Panels = append(data.Panels, v)
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", handlersLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// homePageTemplate is the dashboard page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Car Auction Admin</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error, .notice-error { color: #cc0000; }
    .notice-success { color: #0066cc; }
    .notice-warning { color: #aa6600; }
    button { padding: 0.4rem 0.9rem; margin: 0 0.4rem 0.4rem 0; background: #0066cc; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
    button:disabled { background: #99b8d9; cursor: default; }
    .panel[data-state="loading"] { opacity: 0.6; }
    input, select { padding: 0.3rem; margin-right: 0.4rem; }
  </style>
</head>
<body>
  <h1>Car Auction Admin</h1>
  <p class="meta">{{.Site}}</p>
  {{if .Compat}}{{if not .Compat.Compatible}}<p class="error">{{.Compat.Reason}}</p>{{end}}{{end}}

  <section>
    <h2>Controls</h2>
    <form id="params" onsubmit="return false">
      <input name="car_id" placeholder="Car ID">
      <select name="market">{{range .Markets}}<option>{{.}}</option>{{end}}</select>
      <input name="job" placeholder="Cron hook">
      <label><input type="checkbox" name="enabled" value="true"> enabled</label>
    </form>
    {{range .Controls}}
    <button id="{{.ID}}" data-action="{{.Action}}" {{if .View.Disabled}}disabled{{end}} onclick="trigger('{{.ID}}')">{{.View.Label}}</button>
    {{end}}
    <form method="post" action="/cars/open" style="display:inline">
      <input type="hidden" name="car_id" id="open-car-id">
      <input type="hidden" name="market" id="open-car-market">
      <button type="submit" onclick="copyCar()">Open Car Page</button>
    </form>
  </section>

  {{range .Panels}}
  <section>
    <h2>{{.ID}}</h2>
    <div class="panel" id="{{.ID}}" data-state="{{.State}}">{{markup .Label}}</div>
  </section>
  {{end}}

  {{if .Navigations}}
  <section>
    <h2>Opened pages</h2>
    <ul>{{range .Navigations}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>
  </section>
  {{end}}
  {{if .History}}<p class="meta"><a href="/history">Recent results (JSON)</a></p>{{end}}

  <script>
    function params() {
      const f = document.getElementById('params');
      const body = new URLSearchParams();
      for (const el of f.elements) {
        if (!el.name) continue;
        if (el.type === 'checkbox') { body.set(el.name, el.checked ? 'true' : 'false'); continue; }
        body.set(el.name, el.value);
      }
      return body;
    }
    function copyCar() {
      const f = document.getElementById('params');
      document.getElementById('open-car-id').value = f.elements['car_id'].value;
      document.getElementById('open-car-market').value = f.elements['market'].value;
    }
    function trigger(id) {
      fetch('/actions/' + id, { method: 'POST', body: params() })
        .then(r => r.json())
        .then(r => { if (!r.ok && r.error) console.warn(id, r.error); })
        .catch(e => console.error(id, e));
    }
    function apply(ev) {
      const el = document.getElementById(ev.panel);
      if (!el) return;
      if (el.tagName === 'BUTTON') {
        el.textContent = ev.label;
        el.disabled = ev.disabled;
        return;
      }
      el.dataset.state = ev.state;
      if (ev.label) el.innerHTML = ev.label;
    }
    (function connect() {
      const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
      ws.onmessage = m => apply(JSON.parse(m.data));
      ws.onclose = () => setTimeout(connect, 3000);
    })();
  </script>
</body>
</html>
`
