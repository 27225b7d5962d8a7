package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Summary renders a single human-readable line from the aggregator's numeric
// metrics, e.g. for log lines and the /metrics/summary endpoint.
func Summary(overall string, vals map[string]float64, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%s", overall)
	for _, k := range sortedKeys(vals) {
		fmt.Fprintf(&b, " %s=%.1f", k, vals[k])
	}
	fmt.Fprintf(&b, " at=%s", at.Format(time.RFC3339))
	return b.String()
}

// KeyValue renders the same metrics in a machine-parsable one-pair-per-line
// format suitable for naive scrapers that do not speak Prometheus.
func KeyValue(overall string, vals map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "healthcore_overall{status=%q} 1\n", overall)
	for _, k := range sortedKeys(vals) {
		fmt.Fprintf(&b, "healthcore_%s %g\n", k, vals[k])
	}
	return b.String()
}

func sortedKeys(vals map[string]float64) []string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
