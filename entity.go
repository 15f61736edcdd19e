package surge

import (
	"time"

	"github.com/google/uuid"
)

type Endpoint struct {
	Name    string            `json:"name" yaml:"name"`
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
	Weight  int               `json:"weight" yaml:"weight"`
}

type RequestResult struct {
	Endpoint    string
	Method      string
	StatusCode  int
	Duration    time.Duration
	Timestamp   time.Time
	Bytes       int64
	Err         string
	Concurrency int
}

// Completed reports whether the exchange produced an HTTP status at all.
// Transport failures and timeouts leave the status code at zero.
func (r RequestResult) Completed() bool {
	return r.StatusCode != 0
}

func (r RequestResult) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

type RunLevel struct {
	Concurrency int
	RampUp      time.Duration
	Duration    time.Duration
	StartedAt   time.Time
	Elapsed     time.Duration
	Results     []RequestResult
}

func (l *RunLevel) Stats() map[string]EndpointStats {
	return Reduce(l.Results, l.Elapsed)
}

type LatencyStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

type EndpointStats struct {
	TotalRequests      int           `json:"total_requests"`
	SuccessfulRequests int           `json:"successful_requests"`
	FailedRequests     int           `json:"failed_requests"`
	ErrorRate          float64       `json:"error_rate"`
	Throughput         float64       `json:"throughput"`
	StatusCodes        map[int]int   `json:"status_codes"`
	ErrorSamples       []string      `json:"error_samples,omitempty"`
	Latency            *LatencyStats `json:"latency,omitempty"`
}

type Run struct {
	ID         uuid.UUID
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Levels     []*RunLevel
}
