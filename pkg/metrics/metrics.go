package metrics

import (
	"context"
)

// RecordCount records count against the custom metric metricName on the New
// Relic application attached to ctx, if any.
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if nr, ok := GetNewRelicApp(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}
