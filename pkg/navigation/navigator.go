package navigation

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Navigator sends the user to a validated URL.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// WriterNavigator prints the target, one per line. Used by the CLI.
type WriterNavigator struct {
	W io.Writer
}

func (n WriterNavigator) Navigate(_ context.Context, target string) error {
	_, err := fmt.Fprintln(n.W, target)
	return err
}

// RecordingNavigator keeps every target it was sent to.
type RecordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *RecordingNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	n.targets = append(n.targets, target)
	n.mu.Unlock()
	return nil
}

// Targets returns a copy of the recorded targets.
func (n *RecordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

// Last returns the most recent target, or "".
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.targets) == 0 {
		return ""
	}
	return n.targets[len(n.targets)-1]
}
