package metrics

import (
	"context"
)

// RecordEvent records a custom event on the New Relic application attached to
// ctx, if any.
func RecordEvent(ctx context.Context, eventName string, attributes map[string]interface{}) {
	if nr, ok := GetNewRelicApp(ctx); ok {
		nr.RecordCustomEvent(eventName, attributes)
	}
}
