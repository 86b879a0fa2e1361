// Package notify delivers one-off user notifications, currently only the
// debt-free congratulation sent when a plan completes.
package notify

import "context"

// CompletionNotifier is notified exactly once when a debt plan reaches
// completion. Implementations must be safe for concurrent use.
type CompletionNotifier interface {
	NotifyPlanCompleted(ctx context.Context, userEmail, planName string) error
}
