package memmon

import "time"

// DetectLeak fits a least-squares line through heap-used over the last
// LeakWindow snapshots and classifies the trend in MB/min. With fewer than
// LeakWindow samples it reports not-suspected with zero rate and confidence.
func (m *Monitor) DetectLeak() LeakReport {
	m.mu.Lock()
	window := m.cfg.LeakWindow
	var samples []Snapshot
	if len(m.history) >= window {
		samples = append(samples, m.history[len(m.history)-window:]...)
	}
	historyLen := len(m.history)
	cfg := m.cfg
	m.mu.Unlock()

	if len(samples) < window {
		return LeakReport{Trend: "stable", Samples: historyLen}
	}

	// x in minutes since the first sample, y in MB of heap used.
	base := samples[0].Timestamp
	n := float64(len(samples))
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range samples {
		x := s.Timestamp.Sub(base).Minutes()
		y := heapMB(s)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return LeakReport{Trend: "stable", Samples: len(samples)}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	rep := LeakReport{
		RateMBMin:  slope,
		Samples:    len(samples),
		Confidence: rSquared(samples, base, slope, intercept, sumY/n),
	}
	switch {
	case slope > cfg.LeakIncreasingRate:
		rep.Trend = "increasing"
	case slope < cfg.LeakDecreasingRate:
		rep.Trend = "decreasing"
	default:
		rep.Trend = "stable"
	}
	rep.Suspected = rep.Trend == "increasing" && slope > cfg.LeakSuspectRate
	return rep
}

func heapMB(s Snapshot) float64 {
	return float64(s.Heap.Used) / (1024 * 1024)
}

// rSquared is the coefficient of determination of the fit, used as the
// confidence of the trend classification.
func rSquared(samples []Snapshot, base time.Time, slope, intercept, meanY float64) float64 {
	var ssRes, ssTot float64
	for _, s := range samples {
		x := s.Timestamp.Sub(base).Minutes()
		y := heapMB(s)
		pred := slope*x + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	return r2
}
