// Package actions wraps the car-auction plugin's admin-ajax actions in typed calls.
package actions

import (
	"context"

	"github.com/morezero/auction-admin/pkg/ajax"
)

// Server action names registered by the plugin (wp_ajax_<name>).
const (
	ActionTestConnection      = "car_auction_test_api"
	ActionQueueStatus         = "car_auction_queue_status"
	ActionProcessQueue        = "car_auction_process_queue"
	ActionCronStatus          = "car_auction_cron_status"
	ActionRunCronJob          = "car_auction_run_cron_job"
	ActionToggleCronJob       = "car_auction_toggle_cron_job"
	ActionResetCronSchedule   = "car_auction_reset_cron"
	ActionClearCache          = "car_auction_clear_cache"
	ActionGetCarURL           = "car_auction_get_car_url"
	ActionDeleteCar           = "car_auction_delete_car"
	ActionCheckCreateRedirect = "car_auction_check_create_redirect"
)

// All lists every action in a stable order.
var All = []string{
	ActionTestConnection,
	ActionQueueStatus,
	ActionProcessQueue,
	ActionCronStatus,
	ActionRunCronJob,
	ActionToggleCronJob,
	ActionResetCronSchedule,
	ActionClearCache,
	ActionGetCarURL,
	ActionDeleteCar,
	ActionCheckCreateRedirect,
}

// Dispatcher is the capability every caller needs: send one action, get one outcome.
// *ajax.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, payload ajax.Payload) (*ajax.Outcome, error)
}

// call dispatches and decodes the success data into out (which may be nil).
func call(ctx context.Context, d Dispatcher, action string, payload ajax.Payload, out interface{}) error {
	outcome, err := d.Dispatch(ctx, action, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return outcome.Err()
	}
	return outcome.Decode(out)
}
