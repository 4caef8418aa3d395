package actions

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/morezero/auction-admin/pkg/ajax"
)

// ErrInvalidParameters is returned, before any request is sent, for malformed identifiers.
var ErrInvalidParameters = errors.New("Invalid parameters")

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidIdentifier reports whether s is a car id or cron hook made of [a-zA-Z0-9_-].
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// TestConnection asks the plugin to reach its upstream auction API.
func TestConnection(ctx context.Context, d Dispatcher) (*ConnectionResult, error) {
	var out ConnectionResult
	if err := call(ctx, d, ActionTestConnection, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQueueStatus returns the import queue counters.
func GetQueueStatus(ctx context.Context, d Dispatcher) (*QueueStats, error) {
	var out QueueStats
	if err := call(ctx, d, ActionQueueStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessQueue triggers one manual queue-processing run.
func ProcessQueue(ctx context.Context, d Dispatcher) (*ProcessResult, error) {
	var out ProcessResult
	if err := call(ctx, d, ActionProcessQueue, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCronStatus returns the plugin's scheduled jobs.
func GetCronStatus(ctx context.Context, d Dispatcher) (*CronStatus, error) {
	var out CronStatus
	if err := call(ctx, d, ActionCronStatus, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunCronJob runs a single cron hook now.
func RunCronJob(ctx context.Context, d Dispatcher, hook string) (*Message, error) {
	if !ValidIdentifier(hook) {
		return nil, ErrInvalidParameters
	}
	var out Message
	if err := call(ctx, d, ActionRunCronJob, ajax.Payload{"job": hook}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleCronJob enables or disables a cron hook.
func ToggleCronJob(ctx context.Context, d Dispatcher, hook string, enabled bool) (*Message, error) {
	if !ValidIdentifier(hook) {
		return nil, ErrInvalidParameters
	}
	var out Message
	if err := call(ctx, d, ActionToggleCronJob, ajax.Payload{"job": hook, "enabled": enabled}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetCronSchedule clears and re-registers every plugin schedule.
func ResetCronSchedule(ctx context.Context, d Dispatcher) (*Message, error) {
	var out Message
	if err := call(ctx, d, ActionResetCronSchedule, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache empties the plugin's listing cache.
func ClearCache(ctx context.Context, d Dispatcher) (*Message, error) {
	var out Message
	if err := call(ctx, d, ActionClearCache, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCarURL looks up the public URL of a car record.
func GetCarURL(ctx context.Context, d Dispatcher, carID, market string) (*CarURL, error) {
	if !ValidIdentifier(carID) || !ValidIdentifier(market) {
		return nil, ErrInvalidParameters
	}
	var out CarURL
	if err := call(ctx, d, ActionGetCarURL, ajax.Payload{"car_id": carID, "market": market}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCar removes a car record.
func DeleteCar(ctx context.Context, d Dispatcher, carID string) (*Message, error) {
	if !ValidIdentifier(carID) {
		return nil, ErrInvalidParameters
	}
	var out Message
	if err := call(ctx, d, ActionDeleteCar, ajax.Payload{"car_id": carID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckCreateRedirect makes sure a car page exists and returns where to send the browser.
// Inputs are expected to be validated by the caller.
func CheckCreateRedirect(ctx context.Context, d Dispatcher, carID, market string) (*ajax.Outcome, error) {
	return d.Dispatch(ctx, ActionCheckCreateRedirect, ajax.Payload{
		"car_id": strings.TrimSpace(carID),
		"market": strings.TrimSpace(market),
	})
}
