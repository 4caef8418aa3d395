package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/morezero/auction-admin/internal/config"
	"github.com/morezero/auction-admin/pkg/actions"
	"github.com/morezero/auction-admin/pkg/ajax"
	"github.com/morezero/auction-admin/pkg/events"
	"github.com/morezero/auction-admin/pkg/store"
	"github.com/morezero/auction-admin/pkg/uistate"
)

const serverTestPrefix = "server:server_test"

// fakeWordPress answers admin-ajax.php the way the auction plugin does.
type fakeWordPress struct {
	mu            sync.Mutex
	calls         []string
	nonces        []string
	pluginVersion string
	failQueue     bool
	// block, when set, holds requests for blockAction until closed.
	block       chan struct{}
	blockAction string
	entered     chan struct{}
	site        string
}

func (f *fakeWordPress) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWordPress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	action := r.PostForm.Get("action")
	f.mu.Lock()
	f.calls = append(f.calls, action)
	f.nonces = append(f.nonces, r.PostForm.Get(ajax.TokenField))
	block := f.block
	blocked := block != nil && action == f.blockAction
	failQueue := f.failQueue
	f.mu.Unlock()

	if blocked {
		f.entered <- struct{}{}
		<-block
	}

	w.Header().Set("Content-Type", "application/json")
	switch action {
	case actions.ActionTestConnection:
		fmt.Fprintf(w, `{"success":true,"data":{"message":"Connected","api_status":"ok","plugin_version":%q,"response_time":"42"}}`, f.pluginVersion)
	case actions.ActionQueueStatus:
		if failQueue {
			fmt.Fprint(w, `{"success":false,"data":{"message":"Queue locked"}}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"data":{"pending":"3","processing":1,"completed":10,"failed":0,"total":14}}`)
	case actions.ActionCronStatus:
		fmt.Fprint(w, `{"success":true,"data":{"jobs":[{"hook":"car_auction_sync","schedule":"hourly","enabled":"1"}]}}`)
	case actions.ActionDeleteCar:
		fmt.Fprint(w, `{"success":false,"data":{"message":"Car not found"}}`)
	case actions.ActionGetCarURL:
		fmt.Fprintf(w, `{"success":true,"data":{"url":"%s/cars/%s/%s/"}}`, f.site, r.PostForm.Get("market"), r.PostForm.Get("car_id"))
	case actions.ActionCheckCreateRedirect:
		fmt.Fprintf(w, `{"success":true,"data":{"redirect_url":"%s/cars/%s/%s/","created":true}}`, f.site, r.PostForm.Get("market"), r.PostForm.Get("car_id"))
	default:
		fmt.Fprint(w, `{"success":true,"data":{"message":"Done"}}`)
	}
}

type memoryRecorder struct {
	mu    sync.Mutex
	snaps []*store.Snapshot
}

func (m *memoryRecorder) InsertSnapshot(_ context.Context, s *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *memoryRecorder) all() []*store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.Snapshot(nil), m.snaps...)
}

func testConfig(siteURL string) *config.Config {
	return &config.Config{
		SiteURL:                 siteURL,
		AjaxURL:                 siteURL + "/wp-admin/admin-ajax.php",
		Nonce:                   "abc123",
		RequestTimeout:          5 * time.Second,
		RestoreDelay:            time.Hour,
		PollInterval:            time.Hour,
		FallbackDelay:           10 * time.Millisecond,
		Markets:                 []string{"main", "korea", "japan", "china"},
		PluginVersionConstraint: "^2.0.0",
		HealthCheckTimeout:      time.Second,
	}
}

type fixture struct {
	wp       *fakeWordPress
	site     *httptest.Server
	server   *Server
	recorder *memoryRecorder
}

func newFixture(t *testing.T, extra ...events.EventPublisher) *fixture {
	t.Helper()
	wp := &fakeWordPress{pluginVersion: "2.3.0"}
	mux := http.NewServeMux()
	mux.Handle("/wp-admin/admin-ajax.php", wp)
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)
	wp.site = site.URL

	cfg := testConfig(site.URL)
	s, err := Connect(context.Background(), cfg, site.Client())
	if err != nil {
		t.Fatalf("%s - Connect: %v", serverTestPrefix, err)
	}

	rec := &memoryRecorder{}
	srv := &Server{cfg: cfg}
	var dash *Dashboard
	srv.hub = NewHub(func() []*events.PanelChangedEvent { return dash.Events() })
	dash, err = NewDashboard(DashboardParams{
		Site:         s,
		RestoreDelay: cfg.RestoreDelay,
		Publisher:    append(events.MultiPublisher{srv.hub}, extra...),
		Recorder:     rec,
	})
	if err != nil {
		t.Fatalf("%s - NewDashboard: %v", serverTestPrefix, err)
	}
	srv.dash = dash
	t.Cleanup(srv.hub.Close)
	return &fixture{wp: wp, site: site, server: srv, recorder: rec}
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConnect_UsesConfiguredCredentials(t *testing.T) {
	f := newFixture(t)
	creds := f.server.dash.site.Credentials()
	if creds.Token != "abc123" {
		t.Errorf("%s - token = %q, want abc123", serverTestPrefix, creds.Token)
	}
	if !strings.HasSuffix(creds.EndpointURL, "/wp-admin/admin-ajax.php") {
		t.Errorf("%s - endpoint = %q", serverTestPrefix, creds.EndpointURL)
	}
}

func TestConnect_RejectsRelativeSite(t *testing.T) {
	cfg := testConfig("/relative")
	if _, err := Connect(context.Background(), cfg, nil); err == nil {
		t.Errorf("%s - expected error for relative site url", serverTestPrefix)
	}
}

func TestDashboard_TriggerSuccess(t *testing.T) {
	f := newFixture(t)
	dash := f.server.dash

	if err := dash.Trigger(context.Background(), "refresh-queue", nil); err != nil {
		t.Fatalf("%s - Trigger: %v", serverTestPrefix, err)
	}
	btn, _ := dash.View("refresh-queue")
	if btn.State != uistate.Success.String() || btn.Label != "Refreshed" {
		t.Errorf("%s - button = %+v, want success/Refreshed", serverTestPrefix, btn)
	}
	panel, _ := dash.View(PanelQueue)
	if panel.State != uistate.Success.String() || !strings.Contains(panel.Label, "<td>3</td>") {
		t.Errorf("%s - queue panel = %+v", serverTestPrefix, panel)
	}
	if got := f.wp.actions(); len(got) != 1 || got[0] != actions.ActionQueueStatus {
		t.Errorf("%s - actions = %v", serverTestPrefix, got)
	}
	if f.wp.nonces[0] != "abc123" {
		t.Errorf("%s - nonce = %q, want abc123", serverTestPrefix, f.wp.nonces[0])
	}
}

func TestDashboard_TriggerApplicationFailure(t *testing.T) {
	f := newFixture(t)
	dash := f.server.dash

	err := dash.Trigger(context.Background(), "delete-car", Params{"car_id": "12345"})
	var failure *ajax.Failure
	if !errors.As(err, &failure) || failure.Message != "Car not found" {
		t.Fatalf("%s - err = %v, want Car not found failure", serverTestPrefix, err)
	}
	btn, _ := dash.View("delete-car")
	if btn.State != uistate.Error.String() || btn.Label != "Failed" {
		t.Errorf("%s - button = %+v", serverTestPrefix, btn)
	}
	panel, _ := dash.View(PanelMessages)
	if panel.State != uistate.Error.String() || !strings.Contains(panel.Label, "Car not found") {
		t.Errorf("%s - messages panel = %+v", serverTestPrefix, panel)
	}
}

func TestDashboard_TriggerRefreshesRelatedPanel(t *testing.T) {
	f := newFixture(t)
	if err := f.server.dash.Trigger(context.Background(), "run-cron", Params{"job": "car_auction_sync"}); err != nil {
		t.Fatalf("%s - Trigger: %v", serverTestPrefix, err)
	}
	got := f.wp.actions()
	want := []string{actions.ActionRunCronJob, actions.ActionCronStatus}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("%s - actions = %v, want %v", serverTestPrefix, got, want)
	}
	panel, _ := f.server.dash.View(PanelCron)
	if !strings.Contains(panel.Label, `data-job="car_auction_sync"`) {
		t.Errorf("%s - cron panel = %q", serverTestPrefix, panel.Label)
	}
}

func TestDashboard_InvalidParametersNeverDispatch(t *testing.T) {
	f := newFixture(t)
	err := f.server.dash.Trigger(context.Background(), "car-url", Params{"car_id": "abc;DROP", "market": "main"})
	if !errors.Is(err, actions.ErrInvalidParameters) {
		t.Fatalf("%s - err = %v, want ErrInvalidParameters", serverTestPrefix, err)
	}
	if got := f.wp.actions(); len(got) != 0 {
		t.Errorf("%s - actions = %v, want none", serverTestPrefix, got)
	}
}

func TestDashboard_InFlightIsDropped(t *testing.T) {
	f := newFixture(t)
	f.wp.block = make(chan struct{})
	f.wp.blockAction = actions.ActionTestConnection
	f.wp.entered = make(chan struct{}, 1)
	dash := f.server.dash

	done := make(chan error, 1)
	go func() { done <- dash.Trigger(context.Background(), "test-connection", nil) }()

	select {
	case <-f.wp.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first request never reached the site")
	}

	before, _ := dash.View("test-connection")
	panelBefore, _ := dash.View(PanelConnection)
	err := dash.Trigger(context.Background(), "test-connection", nil)
	if !errors.Is(err, ajax.ErrRequestInFlight) {
		t.Errorf("%s - second Trigger err = %v, want ErrRequestInFlight", serverTestPrefix, err)
	}
	if again, _ := dash.View("test-connection"); again.Seq != before.Seq {
		t.Errorf("%s - dropped Trigger changed the button: %+v -> %+v", serverTestPrefix, before, again)
	}
	if again, _ := dash.View(PanelConnection); again.Seq != panelBefore.Seq {
		t.Errorf("%s - dropped Trigger changed the panel: %+v -> %+v", serverTestPrefix, panelBefore, again)
	}

	close(f.wp.block)
	if err := <-done; err != nil {
		t.Fatalf("%s - first Trigger: %v", serverTestPrefix, err)
	}
	after, _ := dash.View("test-connection")
	if after.Label != "Connected" || after.Seq <= before.Seq {
		t.Errorf("%s - after = %+v, before = %+v", serverTestPrefix, after, before)
	}
	if n := len(f.wp.actions()); n != 1 {
		t.Errorf("%s - requests = %d, want 1", serverTestPrefix, n)
	}
}

func TestDashboard_SharedPanelShowsLatestResult(t *testing.T) {
	f := newFixture(t)
	f.wp.block = make(chan struct{})
	f.wp.blockAction = actions.ActionDeleteCar
	f.wp.entered = make(chan struct{}, 1)
	dash := f.server.dash

	done := make(chan error, 1)
	go func() { done <- dash.Trigger(context.Background(), "delete-car", Params{"car_id": "404"}) }()

	select {
	case <-f.wp.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("delete request never reached the site")
	}

	if err := dash.Trigger(context.Background(), "clear-cache", nil); err != nil {
		t.Fatalf("%s - clear-cache: %v", serverTestPrefix, err)
	}
	if panel, _ := dash.View(PanelMessages); panel.State != uistate.Success.String() {
		t.Fatalf("%s - messages panel after clear-cache = %+v", serverTestPrefix, panel)
	}

	close(f.wp.block)
	if err := <-done; err == nil || !strings.Contains(err.Error(), "Car not found") {
		t.Fatalf("%s - delete-car err = %v, want Car not found", serverTestPrefix, err)
	}
	panel, _ := dash.View(PanelMessages)
	if panel.State != uistate.Error.String() || !strings.Contains(panel.Label, "Car not found") {
		t.Errorf("%s - messages panel = %+v, want the delete failure", serverTestPrefix, panel)
	}
	if btn, _ := dash.View("delete-car"); btn.State != uistate.Error.String() {
		t.Errorf("%s - delete button = %+v", serverTestPrefix, btn)
	}
}

func TestDashboard_PanickingControlEndsInError(t *testing.T) {
	f := newFixture(t)
	dash := f.server.dash
	dash.addControl(&control{
		ID: "explode", Label: "Explode", Busy: "Exploding...", Done: "Done", Panel: PanelMessages,
		run: func(context.Context, actions.Dispatcher, Params) (string, error) {
			panic("boom")
		},
	})

	err := dash.Trigger(context.Background(), "explode", nil)
	if err == nil {
		t.Fatalf("%s - expected an error from a panicking control", serverTestPrefix)
	}
	btn, _ := dash.View("explode")
	if btn.State != uistate.Error.String() || btn.Label != "Failed" {
		t.Errorf("%s - button = %+v, want error/Failed", serverTestPrefix, btn)
	}
	panel, _ := dash.View(PanelMessages)
	if panel.State != uistate.Error.String() || panel.Disabled {
		t.Errorf("%s - messages panel = %+v", serverTestPrefix, panel)
	}
	if rec := postForm(t, f.server.routes(), "/actions/explode", nil); rec.Code != http.StatusOK {
		t.Errorf("%s - action status = %d, want 200", serverTestPrefix, rec.Code)
	}
}

func TestDashboard_IncompatiblePluginWarns(t *testing.T) {
	f := newFixture(t)
	f.wp.pluginVersion = "3.1.0"
	if err := f.server.dash.Trigger(context.Background(), "test-connection", nil); err != nil {
		t.Fatalf("%s - Trigger: %v", serverTestPrefix, err)
	}
	report := f.server.dash.Compat()
	if report == nil || report.Compatible {
		t.Fatalf("%s - compat = %+v, want incompatible", serverTestPrefix, report)
	}
	panel, _ := f.server.dash.View(PanelConnection)
	if !strings.Contains(panel.Label, "notice-error") {
		t.Errorf("%s - connection panel lacks warning: %q", serverTestPrefix, panel.Label)
	}
}

func TestDashboard_RecordsSnapshots(t *testing.T) {
	f := newFixture(t)
	f.server.dash.Trigger(context.Background(), "clear-cache", nil)
	f.server.dash.Trigger(context.Background(), "delete-car", Params{"car_id": "7"})

	snaps := f.recorder.all()
	if len(snaps) != 2 {
		t.Fatalf("%s - snapshots = %d, want 2", serverTestPrefix, len(snaps))
	}
	if !snaps[0].OK || snaps[0].Action != actions.ActionClearCache || snaps[0].Panel != PanelMessages {
		t.Errorf("%s - first snapshot = %+v", serverTestPrefix, snaps[0])
	}
	if snaps[1].OK || snaps[1].Message != "Car not found" {
		t.Errorf("%s - second snapshot = %+v", serverTestPrefix, snaps[1])
	}
}

func TestDashboard_UnknownControl(t *testing.T) {
	f := newFixture(t)
	if err := f.server.dash.Trigger(context.Background(), "nope", nil); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("%s - err = %v, want ErrUnknownControl", serverTestPrefix, err)
	}
	if err := f.server.dash.RefreshPanel(context.Background(), PanelMessages); !errors.Is(err, ErrUnknownControl) {
		t.Errorf("%s - messages panel is not polled, err = %v", serverTestPrefix, err)
	}
}

func TestDashboard_Pollers(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := f.server.dash.StartPollers(ctx, 20*time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		q, _ := f.server.dash.View(PanelQueue)
		c, _ := f.server.dash.View(PanelCron)
		if q.State == uistate.Success.String() && c.State == uistate.Success.String() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	stop()

	var queue, cron int
	for _, a := range f.wp.actions() {
		switch a {
		case actions.ActionQueueStatus:
			queue++
		case actions.ActionCronStatus:
			cron++
		}
	}
	if queue == 0 || cron == 0 {
		t.Errorf("%s - queue polls = %d, cron polls = %d", serverTestPrefix, queue, cron)
	}
}

func TestDashboard_FailingPollKeepsCadence(t *testing.T) {
	f := newFixture(t)
	f.wp.failQueue = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := f.server.dash.StartPollers(ctx, 20*time.Millisecond)

	countQueue := func() int {
		n := 0
		for _, a := range f.wp.actions() {
			if a == actions.ActionQueueStatus {
				n++
			}
		}
		return n
	}
	deadline := time.Now().Add(5 * time.Second)
	for countQueue() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	stop()
	if n := countQueue(); n < 3 {
		t.Fatalf("%s - queue polls = %d, want at least 3", serverTestPrefix, n)
	}
	panel, _ := f.server.dash.View(PanelQueue)
	if panel.State != uistate.Error.String() {
		t.Errorf("%s - queue panel = %+v", serverTestPrefix, panel)
	}
}

func TestHandleAction(t *testing.T) {
	f := newFixture(t)
	h := f.server.routes()

	tests := []struct {
		name    string
		control string
		form    url.Values
		status  int
		ok      bool
	}{
		{"success", "refresh-queue", nil, http.StatusOK, true},
		{"application failure", "delete-car", url.Values{"car_id": {"9"}}, http.StatusOK, false},
		{"invalid parameters", "delete-car", url.Values{"car_id": {"9 OR 1=1"}}, http.StatusBadRequest, false},
		{"unknown control", "nope", nil, http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, h, "/actions/"+tt.control, tt.form)
			if rec.Code != tt.status {
				t.Fatalf("%s - status = %d, want %d (%s)", serverTestPrefix, rec.Code, tt.status, rec.Body.String())
			}
			var resp actionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("%s - decode: %v", serverTestPrefix, err)
			}
			if resp.OK != tt.ok {
				t.Errorf("%s - ok = %v, want %v", serverTestPrefix, resp.OK, tt.ok)
			}
			if !tt.ok && resp.Error == "" {
				t.Errorf("%s - failed response must carry an error", serverTestPrefix)
			}
		})
	}
}

func TestHandlePanel(t *testing.T) {
	f := newFixture(t)
	h := f.server.routes()
	f.server.dash.Trigger(context.Background(), "refresh-cron", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panels/"+PanelCron, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, rec.Code)
	}
	var v uistate.View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if v.ID != PanelCron || v.State != uistate.Success.String() {
		t.Errorf("%s - view = %+v", serverTestPrefix, v)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panels/"+PanelCron+"?format=html", nil))
	if !strings.Contains(rec.Body.String(), "car-auction-cron") {
		t.Errorf("%s - html panel = %q", serverTestPrefix, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panels/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - missing panel status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHandleOpenCar(t *testing.T) {
	f := newFixture(t)
	h := f.server.routes()

	rec := postForm(t, h, "/cars/open", url.Values{"car_id": {"12345"}, "market": {"main"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("%s - status = %d, want 303 (%s)", serverTestPrefix, rec.Code, rec.Body.String())
	}
	want := f.site.URL + "/cars/main/12345/"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("%s - Location = %q, want %q", serverTestPrefix, got, want)
	}
	if nav := f.server.dash.Navigations(); len(nav) != 1 || nav[0] != want {
		t.Errorf("%s - navigations = %v", serverTestPrefix, nav)
	}

	rec = postForm(t, h, "/cars/open", url.Values{"car_id": {"abc;DROP"}, "market": {"main"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("%s - invalid car status = %d, want 400", serverTestPrefix, rec.Code)
	}
	rec = postForm(t, h, "/cars/open", url.Values{"car_id": {"1"}, "market": {"mars"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("%s - invalid market status = %d, want 400", serverTestPrefix, rec.Code)
	}
}

func TestHandleHealthAndReady(t *testing.T) {
	f := newFixture(t)
	h := f.server.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - health status = %d", serverTestPrefix, rec.Code)
	}
	var health healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("%s - decode: %v", serverTestPrefix, err)
	}
	if health.Status != "healthy" || !health.Checks["token"] {
		t.Errorf("%s - health = %+v", serverTestPrefix, health)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ready") {
		t.Errorf("%s - ready = %d %s", serverTestPrefix, rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - history without database status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHandleHome(t *testing.T) {
	f := newFixture(t)
	f.server.dash.Trigger(context.Background(), "refresh-queue", nil)

	rec := httptest.NewRecorder()
	f.server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Car Auction Admin", `id="test-connection"`, `id="queue-status"`, "<td>3</td>", "<option>korea</option>"} {
		if !strings.Contains(body, want) {
			t.Errorf("%s - home page missing %q", serverTestPrefix, want)
		}
	}

	rec = httptest.NewRecorder()
	f.server.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing-here", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("%s - unknown path status = %d, want 404", serverTestPrefix, rec.Code)
	}
}

func TestHub_StreamsPanelEvents(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("%s - dial: %v", serverTestPrefix, err)
	}
	defer conn.Close()

	initial := len(f.server.dash.Views())
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < initial; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("%s - initial event %d: %v", serverTestPrefix, i, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.server.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := f.server.dash.Trigger(context.Background(), "refresh-queue", nil); err != nil {
		t.Fatalf("%s - Trigger: %v", serverTestPrefix, err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s - never saw queue success event: %v", serverTestPrefix, err)
		}
		var ev events.PanelChangedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("%s - decode event: %v", serverTestPrefix, err)
		}
		if ev.Panel == PanelQueue && ev.State == uistate.Success.String() {
			if ev.Site != f.site.URL {
				t.Errorf("%s - event site = %q, want %q", serverTestPrefix, ev.Site, f.site.URL)
			}
			return
		}
	}
}
