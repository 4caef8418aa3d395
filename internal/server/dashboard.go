package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/morezero/auction-admin/pkg/actions"
	"github.com/morezero/auction-admin/pkg/ajax"
	"github.com/morezero/auction-admin/pkg/compat"
	"github.com/morezero/auction-admin/pkg/events"
	"github.com/morezero/auction-admin/pkg/navigation"
	"github.com/morezero/auction-admin/pkg/panels"
	"github.com/morezero/auction-admin/pkg/poller"
	"github.com/morezero/auction-admin/pkg/store"
	"github.com/morezero/auction-admin/pkg/uistate"
)

const dashboardLogPrefix = "server:dashboard"

// Panel ids.
const (
	PanelQueue      = "queue-status"
	PanelCron       = "cron-status"
	PanelConnection = "connection-result"
	PanelMessages   = "messages"
)

// ErrUnknownControl is returned for a control or panel id the dashboard does not have.
var ErrUnknownControl = errors.New("unknown control")

// Params are the form values a control receives.
type Params map[string]string

type runFunc func(ctx context.Context, d actions.Dispatcher, p Params) (string, error)

// control is one button: its labels, the panel that shows its result, and what to run.
type control struct {
	ID      string
	Label   string
	Busy    string
	Done    string
	Panel   string
	Refresh string
	Action  string
	run     runFunc
}

// DashboardParams holds the collaborators of a Dashboard. Nil publisher and recorder are
// replaced by no-ops.
type DashboardParams struct {
	Site         *Site
	RestoreDelay time.Duration
	Publisher    events.EventPublisher
	Recorder     store.Recorder
	Checker      *compat.Checker
}

// Dashboard owns the UI state of every control and panel and the dispatchers behind them.
type Dashboard struct {
	site        *Site
	tracker     *uistate.Tracker
	controls    map[string]*control
	order       []string
	refreshers  map[string]runFunc
	dispatchers map[string]actions.Dispatcher
	guard       *navigation.Guard
	navigations *navigation.RecordingNavigator
	checker     *compat.Checker
	publisher   events.EventPublisher
	recorder    store.Recorder

	mu     sync.Mutex
	compat *compat.Report
}

// NewDashboard wires controls, panels and their dispatchers.
func NewDashboard(p DashboardParams) (*Dashboard, error) {
	if p.Site == nil {
		return nil, fmt.Errorf("%s - site is required", dashboardLogPrefix)
	}
	d := &Dashboard{
		site:        p.Site,
		tracker:     uistate.NewTracker(p.RestoreDelay),
		controls:    make(map[string]*control),
		refreshers:  make(map[string]runFunc),
		dispatchers: make(map[string]actions.Dispatcher),
		navigations: &navigation.RecordingNavigator{},
		checker:     p.Checker,
		publisher:   p.Publisher,
		recorder:    p.Recorder,
	}
	if d.publisher == nil {
		d.publisher = &events.NoOpPublisher{}
	}
	if d.recorder == nil {
		d.recorder = store.NoOpRecorder{}
	}
	if d.checker == nil {
		checker, err := compat.NewChecker("")
		if err != nil {
			return nil, err
		}
		d.checker = checker
	}

	guard, err := p.Site.Guard(d.navigations)
	if err != nil {
		return nil, err
	}
	d.guard = guard

	d.tracker.OnChange = d.publish

	d.tracker.RegisterPanel(PanelQueue, "")
	d.tracker.RegisterPanel(PanelCron, "")
	d.tracker.RegisterPanel(PanelConnection, "")
	d.tracker.RegisterPanel(PanelMessages, "")
	d.refreshers[PanelQueue] = refreshQueue
	d.refreshers[PanelCron] = refreshCron
	d.dispatchers[PanelQueue] = d.recording(PanelQueue, p.Site.Dispatcher(PanelQueue))
	d.dispatchers[PanelCron] = d.recording(PanelCron, p.Site.Dispatcher(PanelCron))

	for _, c := range d.defaultControls() {
		d.addControl(c)
	}
	return d, nil
}

func (d *Dashboard) addControl(c *control) {
	d.controls[c.ID] = c
	d.order = append(d.order, c.ID)
	d.dispatchers[c.ID] = d.recording(c.Panel, d.site.Dispatcher(c.ID))
	d.tracker.Register(c.ID, c.Label)
}

func (d *Dashboard) defaultControls() []*control {
	return []*control{
		{
			ID: "test-connection", Label: "Test API Connection", Busy: "Testing...", Done: "Connected",
			Panel: PanelConnection, Action: actions.ActionTestConnection, run: d.testConnection,
		},
		{
			ID: "process-queue", Label: "Process Queue Now", Busy: "Processing...", Done: "Processed",
			Panel: PanelMessages, Refresh: PanelQueue, Action: actions.ActionProcessQueue,
			run: func(ctx context.Context, disp actions.Dispatcher, _ Params) (string, error) {
				res, err := actions.ProcessQueue(ctx, disp)
				if err != nil {
					return "", err
				}
				msg := res.Message
				if msg == "" {
					msg = fmt.Sprintf("Processed %d items (%d errors)", res.Processed, res.Errors)
				}
				return panels.Success(msg)
			},
		},
		{
			ID: "refresh-queue", Label: "Refresh Queue Stats", Busy: "Refreshing...", Done: "Refreshed",
			Panel: PanelQueue, Action: actions.ActionQueueStatus, run: refreshQueue,
		},
		{
			ID: "refresh-cron", Label: "Refresh Cron Status", Busy: "Refreshing...", Done: "Refreshed",
			Panel: PanelCron, Action: actions.ActionCronStatus, run: refreshCron,
		},
		{
			ID: "run-cron", Label: "Run Job", Busy: "Running...", Done: "Done",
			Panel: PanelMessages, Refresh: PanelCron, Action: actions.ActionRunCronJob,
			run: func(ctx context.Context, disp actions.Dispatcher, p Params) (string, error) {
				return messageResult(actions.RunCronJob(ctx, disp, p["job"]))
			},
		},
		{
			ID: "toggle-cron", Label: "Toggle Job", Busy: "Saving...", Done: "Saved",
			Panel: PanelMessages, Refresh: PanelCron, Action: actions.ActionToggleCronJob,
			run: func(ctx context.Context, disp actions.Dispatcher, p Params) (string, error) {
				enabled, _ := strconv.ParseBool(p["enabled"])
				return messageResult(actions.ToggleCronJob(ctx, disp, p["job"], enabled))
			},
		},
		{
			ID: "reset-cron", Label: "Reset Cron Schedule", Busy: "Resetting...", Done: "Reset",
			Panel: PanelMessages, Refresh: PanelCron, Action: actions.ActionResetCronSchedule,
			run: func(ctx context.Context, disp actions.Dispatcher, _ Params) (string, error) {
				return messageResult(actions.ResetCronSchedule(ctx, disp))
			},
		},
		{
			ID: "clear-cache", Label: "Clear Cache", Busy: "Clearing...", Done: "Cleared",
			Panel: PanelMessages, Action: actions.ActionClearCache,
			run: func(ctx context.Context, disp actions.Dispatcher, _ Params) (string, error) {
				return messageResult(actions.ClearCache(ctx, disp))
			},
		},
		{
			ID: "car-url", Label: "Get Car URL", Busy: "Looking up...", Done: "Found",
			Panel: PanelMessages, Action: actions.ActionGetCarURL,
			run: func(ctx context.Context, disp actions.Dispatcher, p Params) (string, error) {
				res, err := actions.GetCarURL(ctx, disp, p["car_id"], p["market"])
				if err != nil {
					return "", err
				}
				return panels.Success(res.URL)
			},
		},
		{
			ID: "delete-car", Label: "Delete Car", Busy: "Deleting...", Done: "Deleted",
			Panel: PanelMessages, Action: actions.ActionDeleteCar,
			run: func(ctx context.Context, disp actions.Dispatcher, p Params) (string, error) {
				return messageResult(actions.DeleteCar(ctx, disp, p["car_id"]))
			},
		},
	}
}

func messageResult(m *actions.Message, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return panels.Success(m.Message)
}

func refreshQueue(ctx context.Context, disp actions.Dispatcher, _ Params) (string, error) {
	stats, err := actions.GetQueueStatus(ctx, disp)
	if err != nil {
		return "", err
	}
	return panels.Queue(stats)
}

func refreshCron(ctx context.Context, disp actions.Dispatcher, _ Params) (string, error) {
	status, err := actions.GetCronStatus(ctx, disp)
	if err != nil {
		return "", err
	}
	return panels.Cron(status)
}

func (d *Dashboard) testConnection(ctx context.Context, disp actions.Dispatcher, _ Params) (string, error) {
	res, err := actions.TestConnection(ctx, disp)
	if err != nil {
		return "", err
	}
	report := d.checker.Check(res.PluginVersion)
	d.mu.Lock()
	d.compat = &report
	d.mu.Unlock()
	if !report.Compatible {
		slog.Warn(fmt.Sprintf("%s - %s", dashboardLogPrefix, report.Reason))
	}

	markup, err := panels.Connection(res)
	if err != nil || report.Compatible {
		return markup, err
	}
	warning, err := panels.Error(report.Reason)
	if err != nil {
		return "", err
	}
	return markup + warning, nil
}

// Trigger runs control id: the button goes loading, one request is dispatched, and the
// button and its result panel show the outcome. A control whose request is still in flight
// returns ajax.ErrRequestInFlight and changes nothing.
func (d *Dashboard) Trigger(ctx context.Context, id string, p Params) error {
	c, ok := d.controls[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	disp := d.dispatchers[id]
	if isBusy(disp) {
		slog.Debug(fmt.Sprintf("%s - %s already in flight, ignored", dashboardLogPrefix, id))
		return ajax.ErrRequestInFlight
	}

	d.transition(c.ID, uistate.Loading, c.Busy)
	d.transition(c.Panel, uistate.Loading, "")

	markup, err := safeRun(ctx, id, c.run, disp, p)
	if errors.Is(err, ajax.ErrRequestInFlight) {
		slog.Debug(fmt.Sprintf("%s - %s already in flight, ignored", dashboardLogPrefix, id))
		return err
	}
	if err != nil {
		d.transition(c.ID, uistate.Error, "Failed")
		d.transition(c.Panel, uistate.Error, failureMarkup(err))
		return err
	}

	d.transition(c.ID, uistate.Success, c.Done)
	d.transition(c.Panel, uistate.Success, markup)

	if c.Refresh != "" {
		if err := d.RefreshPanel(ctx, c.Refresh); err != nil && !errors.Is(err, ajax.ErrRequestInFlight) {
			slog.Debug(fmt.Sprintf("%s - refresh of %s after %s failed: %v", dashboardLogPrefix, c.Refresh, id, err))
		}
	}
	return nil
}

// RefreshPanel reloads a polled panel (queue or cron status).
func (d *Dashboard) RefreshPanel(ctx context.Context, id string) error {
	refresh, ok := d.refreshers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}

	disp := d.dispatchers[id]
	if isBusy(disp) {
		return ajax.ErrRequestInFlight
	}
	d.transition(id, uistate.Loading, "")
	markup, err := safeRun(ctx, id, refresh, disp, nil)
	if errors.Is(err, ajax.ErrRequestInFlight) {
		return err
	}
	if err != nil {
		d.transition(id, uistate.Error, failureMarkup(err))
		return err
	}
	d.transition(id, uistate.Success, markup)
	return nil
}

// OpenCar validates and opens a car page. See navigation.Guard.Open.
func (d *Dashboard) OpenCar(ctx context.Context, carID, market string) (*navigation.Decision, error) {
	return d.guard.Open(ctx, carID, market)
}

// StartPollers starts one independent poller per polled panel. Stop them with the returned func.
func (d *Dashboard) StartPollers(ctx context.Context, interval time.Duration) func() {
	var pollers []*poller.Poller
	for _, id := range []string{PanelQueue, PanelCron} {
		id := id
		pollers = append(pollers, poller.Start(ctx, id, interval, func(ctx context.Context) {
			if err := d.RefreshPanel(ctx, id); err != nil && !errors.Is(err, ajax.ErrRequestInFlight) {
				slog.Debug(fmt.Sprintf("%s - poll %s: %v", dashboardLogPrefix, id, err))
			}
		}))
	}
	return func() {
		for _, p := range pollers {
			p.Stop()
		}
	}
}

// Views returns every control and panel.
func (d *Dashboard) Views() []uistate.View {
	return d.tracker.Views()
}

// View returns one control or panel.
func (d *Dashboard) View(id string) (uistate.View, bool) {
	return d.tracker.View(id)
}

// Controls returns control ids and labels in display order.
func (d *Dashboard) Controls() []ControlInfo {
	out := make([]ControlInfo, 0, len(d.order))
	for _, id := range d.order {
		c := d.controls[id]
		info := ControlInfo{ID: c.ID, Label: c.Label, Panel: c.Panel, Action: c.Action}
		if v, ok := d.tracker.View(id); ok {
			info.View = v
		}
		out = append(out, info)
	}
	return out
}

// ControlInfo describes a control for the dashboard page.
type ControlInfo struct {
	ID     string
	Label  string
	Panel  string
	Action string
	View   uistate.View
}

// Compat returns the last plugin version check, or nil before the first connection test.
func (d *Dashboard) Compat() *compat.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.compat
}

// Navigations returns every URL the guard navigated to.
func (d *Dashboard) Navigations() []string {
	return d.navigations.Targets()
}

// Events returns the current state of every element as events.
func (d *Dashboard) Events() []*events.PanelChangedEvent {
	views := d.tracker.Views()
	out := make([]*events.PanelChangedEvent, 0, len(views))
	for _, v := range views {
		out = append(out, events.FromView(v, d.site.cfg.SiteURL))
	}
	return out
}

func (d *Dashboard) transition(id string, state uistate.State, label string) {
	if err := d.tracker.Transition(id, state, label); err != nil {
		slog.Debug(fmt.Sprintf("%s - %v", dashboardLogPrefix, err))
	}
}

func (d *Dashboard) publish(v uistate.View) {
	if err := d.publisher.PublishPanel(context.Background(), events.FromView(v, d.site.cfg.SiteURL)); err != nil {
		slog.Warn(fmt.Sprintf("%s - publish %s: %v", dashboardLogPrefix, v.ID, err))
	}
}

// safeRun turns a panic in fn into an error so the element still reaches a final state.
func safeRun(ctx context.Context, id string, fn runFunc, disp actions.Dispatcher, p Params) (markup string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - %s panicked: %v", dashboardLogPrefix, id, r))
			markup, err = "", fmt.Errorf("unexpected error in %s", id)
		}
	}()
	return fn(ctx, disp, p)
}

type busyReporter interface {
	Busy() bool
}

func isBusy(disp actions.Dispatcher) bool {
	b, ok := disp.(busyReporter)
	return ok && b.Busy()
}

func failureMarkup(err error) string {
	markup, rerr := panels.Failure(err)
	if rerr != nil {
		return panels.FailureText(err)
	}
	return markup
}

// recording wraps a dispatcher so every completed request is stored as a snapshot.
func (d *Dashboard) recording(panel string, inner actions.Dispatcher) actions.Dispatcher {
	return &recordingDispatcher{panel: panel, inner: inner, recorder: d.recorder}
}

type recordingDispatcher struct {
	panel    string
	inner    actions.Dispatcher
	recorder store.Recorder
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, action string, payload ajax.Payload) (*ajax.Outcome, error) {
	start := time.Now()
	out, err := r.inner.Dispatch(ctx, action, payload)
	if errors.Is(err, ajax.ErrRequestInFlight) {
		return out, err
	}
	snap := store.NewSnapshot(r.panel, action, out, err, time.Since(start))
	if rerr := r.recorder.InsertSnapshot(ctx, snap); rerr != nil {
		slog.Warn(fmt.Sprintf("%s - record snapshot: %v", dashboardLogPrefix, rerr))
	}
	return out, err
}

// Busy reports whether the wrapped dispatcher has a request outstanding.
func (r *recordingDispatcher) Busy() bool {
	return isBusy(r.inner)
}
