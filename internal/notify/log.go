package notify

import (
	"context"

	"debtwise/internal/logger"
)

// LogNotifier writes completion notifications to the application log.
// It is the default when no external channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyPlanCompleted logs the completion event.
func (n *LogNotifier) NotifyPlanCompleted(_ context.Context, userEmail, planName string) error {
	logger.Get().Infow("debt plan completed",
		"user_email", userEmail,
		"plan_name", planName,
	)
	return nil
}
