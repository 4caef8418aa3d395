package ajax

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

const routerLogPrefix = "ajax:router"

// Handlers are the continuations for a routed outcome. Nil handlers are skipped.
type Handlers struct {
	OnSuccess func(data json.RawMessage)
	OnFailure func(reason *Failure)
}

// Route invokes exactly one of h.OnSuccess or h.OnFailure. A panic raised by the
// continuation is recovered and logged.
func Route(out *Outcome, h Handlers) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - handler panicked: %v", routerLogPrefix, r))
		}
	}()

	if out != nil && out.OK {
		if h.OnSuccess != nil {
			h.OnSuccess(out.Data)
		}
		return
	}

	reason := &Failure{Message: "no response"}
	if out != nil && out.Reason != nil {
		reason = out.Reason
	}
	if reason.Transport != nil {
		slog.Debug(fmt.Sprintf("%s - transport failure status=%d timeout=%t", routerLogPrefix, reason.Transport.StatusCode, reason.Transport.IsTimeout))
	}
	if h.OnFailure != nil {
		h.OnFailure(reason)
	}
}
