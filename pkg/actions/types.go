package actions

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt accepts a JSON number or a numeric string; PHP often sends counts as "12".
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = FlexInt(v)
	return nil
}

// FlexBool accepts true/false, 1/0 and "1"/"0"/"yes"/"no".
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`)) {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Message is the data of actions that only report a result string. The plugin sends it
// either as a bare string or as {"message": "..."}.
type Message struct {
	Message string `json:"message"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.Message = s
		return nil
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	m.Message = obj.Message
	return nil
}

// ConnectionResult is the data of the connectivity test.
type ConnectionResult struct {
	Message        string  `json:"message"`
	APIStatus      string  `json:"api_status,omitempty"`
	PluginVersion  string  `json:"plugin_version,omitempty"`
	ResponseTimeMs FlexInt `json:"response_time,omitempty"`
}

// QueueStats is the data of the queue-status query.
type QueueStats struct {
	Pending       FlexInt `json:"pending"`
	Processing    FlexInt `json:"processing"`
	Completed     FlexInt `json:"completed"`
	Failed        FlexInt `json:"failed"`
	Total         FlexInt `json:"total"`
	LastProcessed string  `json:"last_processed,omitempty"`
}

// ProcessResult is the data of the manual queue-processing trigger.
type ProcessResult struct {
	Message   string  `json:"message"`
	Processed FlexInt `json:"processed"`
	Errors    FlexInt `json:"errors"`
}

// CronJob is one scheduled plugin hook.
type CronJob struct {
	Hook     string   `json:"hook"`
	Name     string   `json:"name,omitempty"`
	Schedule string   `json:"schedule,omitempty"`
	NextRun  string   `json:"next_run,omitempty"`
	LastRun  string   `json:"last_run,omitempty"`
	Enabled  FlexBool `json:"enabled"`
}

// CronStatus is the data of the cron-status query.
type CronStatus struct {
	Jobs           []CronJob `json:"jobs"`
	WPCronDisabled FlexBool  `json:"wp_cron_disabled,omitempty"`
	ServerTime     string    `json:"server_time,omitempty"`
}

// CarURL is the data of the car-URL lookup.
type CarURL struct {
	URL string `json:"url"`
}

// Redirect is the data of the check-and-create-then-redirect operation.
type Redirect struct {
	RedirectURL string   `json:"redirect_url"`
	Created     FlexBool `json:"created,omitempty"`
	Message     string   `json:"message,omitempty"`
}
