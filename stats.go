package surge

import (
	"fmt"
	"sort"
	"time"
)

const (
	maxErrorSamples      = 5
	minPercentileDataLen = 2
)

// Reduce groups results by endpoint and reduces every group to its stats.
// Throughput is requests over the observed elapsed time of the level, not
// the configured duration.
func Reduce(results []RequestResult, elapsed time.Duration) map[string]EndpointStats {
	groups := map[string][]RequestResult{}
	for _, r := range results {
		groups[r.Endpoint] = append(groups[r.Endpoint], r)
	}

	stats := make(map[string]EndpointStats, len(groups))
	for name, group := range groups {
		stats[name] = reduceEndpoint(group, elapsed)
	}

	return stats
}

func reduceEndpoint(results []RequestResult, elapsed time.Duration) EndpointStats {
	st := EndpointStats{
		TotalRequests: len(results),
		StatusCodes:   map[int]int{},
	}

	durations := []float64{}

	for _, r := range results {
		st.StatusCodes[r.StatusCode]++

		if r.Success() {
			st.SuccessfulRequests++
		} else {
			st.FailedRequests++
			if len(st.ErrorSamples) < maxErrorSamples {
				if r.Err != "" {
					st.ErrorSamples = append(st.ErrorSamples, r.Err)
				} else if r.Completed() {
					st.ErrorSamples = append(st.ErrorSamples, fmt.Sprintf("status %d", r.StatusCode))
				}
			}
		}

		// percentiles cover completed exchanges only
		if r.Completed() {
			durations = append(durations, r.Duration.Seconds())
		}
	}

	if st.TotalRequests > 0 {
		st.ErrorRate = float64(st.FailedRequests) / float64(st.TotalRequests)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		st.Throughput = float64(st.TotalRequests) / secs
	}

	if len(durations) > 0 {
		sort.Float64s(durations)
		st.Latency = &LatencyStats{
			Min:    durations[0],
			Max:    durations[len(durations)-1],
			Mean:   mean(durations),
			Median: median(durations),
			P95:    percentile(durations, 0.95),
			P99:    percentile(durations, 0.99),
		}
	}

	return st
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile indexes the sorted data at floor(len*p), clamped to the last
// element. Below two samples the single value stands in for every rank.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) < minPercentileDataLen {
		return sorted[0]
	}

	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}

	return sorted[i]
}
