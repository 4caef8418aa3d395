// Package panels renders action results into the HTML fragments the admin screens show.
package panels

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/morezero/auction-admin/pkg/actions"
	"github.com/morezero/auction-admin/pkg/ajax"
)

const logPrefix = "panels:panels"

// ConnectionFailedText is shown for every transport failure.
const ConnectionFailedText = "Connection failed. Please try again."

const fragmentTemplates = `
{{define "message"}}<div class="notice notice-{{.Kind}}"><p>{{.Text}}</p></div>{{end}}

{{define "connection"}}<div class="notice notice-success car-auction-connection">
  <p>{{if .Message}}{{.Message}}{{else}}Connection successful{{end}}</p>
  {{if .APIStatus}}<p>API status: <strong>{{.APIStatus}}</strong></p>{{end}}
  {{if .PluginVersion}}<p>Plugin version: {{.PluginVersion}}</p>{{end}}
  {{if .ResponseTimeMs}}<p>Response time: {{.ResponseTimeMs}} ms</p>{{end}}
</div>{{end}}

{{define "queue"}}<table class="widefat car-auction-queue-stats">
  <tbody>
    <tr><th>Pending</th><td>{{.Pending}}</td></tr>
    <tr><th>Processing</th><td>{{.Processing}}</td></tr>
    <tr><th>Completed</th><td>{{.Completed}}</td></tr>
    <tr><th>Failed</th><td class="{{if .Failed}}error{{end}}">{{.Failed}}</td></tr>
    <tr><th>Total</th><td>{{.Total}}</td></tr>
    {{if .LastProcessed}}<tr><th>Last processed</th><td>{{.LastProcessed}}</td></tr>{{end}}
  </tbody>
</table>{{end}}

{{define "cron"}}{{if .WPCronDisabled}}<div class="notice notice-warning"><p>WP-Cron is disabled (DISABLE_WP_CRON).</p></div>{{end}}
{{if not .Jobs}}<p>No scheduled jobs.</p>{{else}}<table class="widefat car-auction-cron">
  <thead><tr><th>Job</th><th>Schedule</th><th>Next run</th><th>Last run</th><th>Status</th></tr></thead>
  <tbody>
    {{range .Jobs}}<tr data-job="{{.Hook}}">
      <td>{{if .Name}}{{.Name}}{{else}}{{.Hook}}{{end}}</td>
      <td>{{.Schedule}}</td>
      <td>{{if .NextRun}}{{.NextRun}}{{else}}&mdash;{{end}}</td>
      <td>{{if .LastRun}}{{.LastRun}}{{else}}&mdash;{{end}}</td>
      <td>{{if .Enabled}}Enabled{{else}}Disabled{{end}}</td>
    </tr>{{end}}
  </tbody>
</table>{{end}}
{{if .ServerTime}}<p class="description">Server time: {{.ServerTime}}</p>{{end}}{{end}}
`

var fragments = template.Must(template.New("panels").Parse(fragmentTemplates))

type message struct {
	Kind string
	Text string
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%s - render %s: %w", logPrefix, name, err)
	}
	return buf.String(), nil
}

// Success renders a success notice.
func Success(text string) (string, error) {
	return render("message", message{Kind: "success", Text: text})
}

// Error renders an error notice.
func Error(text string) (string, error) {
	return render("message", message{Kind: "error", Text: text})
}

// Connection renders the connectivity test result.
func Connection(res *actions.ConnectionResult) (string, error) {
	return render("connection", res)
}

// Queue renders the queue counters table.
func Queue(stats *actions.QueueStats) (string, error) {
	return render("queue", stats)
}

// Cron renders the scheduled jobs table.
func Cron(status *actions.CronStatus) (string, error) {
	return render("cron", status)
}

// FailureText is the user-facing text for err: transport failures get the generic connection
// message, application failures the server's message.
func FailureText(err error) string {
	var f *ajax.Failure
	if errors.As(err, &f) {
		if f.IsTransport() {
			return ConnectionFailedText
		}
		return f.Error()
	}
	if errors.Is(err, actions.ErrInvalidParameters) {
		return actions.ErrInvalidParameters.Error()
	}
	return err.Error()
}

// Failure renders err as an error notice.
func Failure(err error) (string, error) {
	return Error(FailureText(err))
}
