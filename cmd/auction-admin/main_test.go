package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/morezero/auction-admin/pkg/actions"
)

const mainTestPrefix = "cmd/auction-admin:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "watch", "history", "AUCTION_SITE_URL", "DATABASE_URL"}
	for cmd := range siteCommands {
		required = append(required, cmd)
	}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

// fakeSite serves admin-ajax.php and records the last form it received.
func fakeSite(t *testing.T) (*httptest.Server, *url.Values) {
	t.Helper()
	last := &url.Values{}
	var site *httptest.Server
	site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		*last = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("action") {
		case actions.ActionQueueStatus:
			fmt.Fprint(w, `{"success":true,"data":{"pending":2,"processing":0,"completed":"5","failed":1,"total":8}}`)
		case actions.ActionTestConnection:
			fmt.Fprint(w, `{"success":true,"data":{"message":"ok","plugin_version":"1.4.0"}}`)
		case actions.ActionCheckCreateRedirect:
			fmt.Fprintf(w, `{"success":true,"data":{"redirect_url":"%s/cars/korea/77/"}}`, site.URL)
		case actions.ActionDeleteCar:
			fmt.Fprint(w, `{"success":false,"data":{"message":"Car not found"}}`)
		default:
			fmt.Fprint(w, `{"success":true,"data":{"message":"Done"}}`)
		}
	}))
	t.Cleanup(site.Close)

	t.Setenv("AUCTION_SITE_URL", site.URL)
	t.Setenv("AUCTION_AJAX_URL", site.URL+"/wp-admin/admin-ajax.php")
	t.Setenv("AUCTION_NONCE", "n0nce")
	t.Setenv("AUCTION_ADMIN_PAGE_URL", "")
	t.Setenv("AUCTION_CONFIG_FILE", "")
	t.Setenv("MARKETS", "main,korea")
	return site, last
}

func TestRunSiteCommand_QueueStatus(t *testing.T) {
	fakeSite(t)
	var out bytes.Buffer
	if err := runSiteCommand(context.Background(), &out, "queue-status", nil); err != nil {
		t.Fatalf("%s - queue-status: %v", mainTestPrefix, err)
	}
	var stats actions.QueueStats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("%s - decode output %q: %v", mainTestPrefix, out.String(), err)
	}
	if stats.Completed != 5 || stats.Total != 8 {
		t.Errorf("%s - stats = %+v", mainTestPrefix, stats)
	}
}

func TestRunSiteCommand_TestConnectionReportsCompat(t *testing.T) {
	fakeSite(t)
	var out bytes.Buffer
	if err := runSiteCommand(context.Background(), &out, "test-connection", nil); err != nil {
		t.Fatalf("%s - test-connection: %v", mainTestPrefix, err)
	}
	if !strings.Contains(out.String(), `"compatible": false`) {
		t.Errorf("%s - output = %s", mainTestPrefix, out.String())
	}
}

func TestRunSiteCommand_CronToggleSendsPayload(t *testing.T) {
	_, last := fakeSite(t)
	var out bytes.Buffer
	if err := runSiteCommand(context.Background(), &out, "cron-toggle", []string{"car_auction_sync", "off"}); err != nil {
		t.Fatalf("%s - cron-toggle: %v", mainTestPrefix, err)
	}
	if last.Get("job") != "car_auction_sync" || last.Get("enabled") != "0" {
		t.Errorf("%s - form = %v", mainTestPrefix, *last)
	}
}

func TestRunSiteCommand_Open(t *testing.T) {
	site, _ := fakeSite(t)
	var out bytes.Buffer
	if err := runSiteCommand(context.Background(), &out, "open", []string{"77", "korea"}); err != nil {
		t.Fatalf("%s - open: %v", mainTestPrefix, err)
	}
	if got, want := strings.TrimSpace(out.String()), site.URL+"/cars/korea/77/"; got != want {
		t.Errorf("%s - open printed %q, want %q", mainTestPrefix, got, want)
	}
}

func TestRunSiteCommand_Errors(t *testing.T) {
	fakeSite(t)
	tests := []struct {
		name string
		cmd  string
		args []string
		want string
	}{
		{"missing args", "car-url", []string{"1"}, "requires 2"},
		{"bad switch", "cron-toggle", []string{"job", "maybe"}, "expected on or off"},
		{"invalid id", "delete-car", []string{"1;2"}, "Invalid parameters"},
		{"application failure", "delete-car", []string{"404"}, "Car not found"},
		{"market outside enum", "open", []string{"77", "japan"}, "Invalid parameters"},
		{"unknown", "bogus", nil, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runSiteCommand(context.Background(), &bytes.Buffer{}, tt.cmd, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("%s - err = %v, want containing %q", mainTestPrefix, err, tt.want)
			}
		})
	}
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "ON": true, "1": true, "off": false, "disabled": false} {
		got, err := parseSwitch(in)
		if err != nil || got != want {
			t.Errorf("%s - parseSwitch(%q) = %v, %v", mainTestPrefix, in, got, err)
		}
	}
	if _, err := parseSwitch(""); err == nil {
		t.Errorf("%s - empty switch must fail", mainTestPrefix)
	}
}
