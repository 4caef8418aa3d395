// Package ajax issues admin-ajax.php requests and routes their {success, data} envelopes.
package ajax

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Credentials is the resolved endpoint/token pair for one admin page.
type Credentials struct {
	EndpointURL string
	Token       string
}

// HasToken reports whether a security token was resolved.
func (c Credentials) HasToken() bool {
	return c.Token != ""
}

// Payload holds operation-specific request fields. Values are strings, numbers or bools.
type Payload map[string]interface{}

// Envelope is the JSON wrapper WordPress returns from wp_send_json_success / wp_send_json_error.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TransportError describes a request that never produced an envelope.
type TransportError struct {
	StatusCode int  `json:"statusCode"`
	IsTimeout  bool `json:"isTimeout"`
}

// Failure is the Err side of an Outcome.
type Failure struct {
	// Message is the server-supplied data when it is a string, otherwise a synthesized description.
	Message string
	// Data is the raw server data for application failures.
	Data json.RawMessage
	// Transport is set when no envelope was received.
	Transport *TransportError
}

func (f *Failure) Error() string {
	if f.Transport != nil {
		switch {
		case f.Transport.IsTimeout:
			return "request timed out"
		case f.Transport.StatusCode != 0:
			return fmt.Sprintf("connection failed (status %d)", f.Transport.StatusCode)
		default:
			return "connection failed"
		}
	}
	if f.Message != "" {
		return f.Message
	}
	return "request failed"
}

// IsTransport reports whether the failure happened below the envelope.
func (f *Failure) IsTransport() bool {
	return f.Transport != nil
}

// Outcome is the tagged result of one dispatched request: OK with Data, or not OK with Reason.
type Outcome struct {
	OK     bool
	Data   json.RawMessage
	Reason *Failure
}

// Success builds an Ok outcome.
func Success(data json.RawMessage) *Outcome {
	return &Outcome{OK: true, Data: data}
}

// Fail builds an Err outcome.
func Fail(reason *Failure) *Outcome {
	return &Outcome{OK: false, Reason: reason}
}

// Err returns the failure as an error, or nil for a successful outcome.
func (o *Outcome) Err() error {
	if o == nil {
		return &Failure{Message: "no response"}
	}
	if o.OK {
		return nil
	}
	if o.Reason == nil {
		return &Failure{}
	}
	return o.Reason
}

// Decode unmarshals the success data into v. Failed outcomes return their failure.
func (o *Outcome) Decode(v interface{}) error {
	if err := o.Err(); err != nil {
		return err
	}
	if len(o.Data) == 0 || string(o.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(o.Data, v); err != nil {
		return fmt.Errorf("%s - failed to decode data: %w", routerLogPrefix, err)
	}
	return nil
}

// applicationFailure builds the Err reason for an envelope with success=false.
func applicationFailure(data json.RawMessage) *Failure {
	f := &Failure{Data: data}
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		f.Message = msg
		return f
	}
	// wp_send_json_error( array( 'message' => ... ) )
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
		f.Message = obj.Message
	}
	return f
}

// decodeBody maps a 2xx response body to an Outcome.
func decodeBody(status int, body []byte) *Outcome {
	trimmed := strings.TrimSpace(string(body))
	switch trimmed {
	case "-1":
		// check_ajax_referer() failure
		return Fail(&Failure{Message: "security check failed"})
	case "0":
		// no handler registered for the action
		return Fail(&Failure{Message: "unknown action"})
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Fail(&Failure{Message: "invalid response", Transport: &TransportError{StatusCode: status}})
	}
	if env.Success {
		return Success(env.Data)
	}
	return Fail(applicationFailure(env.Data))
}
