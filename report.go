package surge

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

type LevelReport struct {
	Concurrency   int                      `json:"concurrent_users"`
	DurationSec   float64                  `json:"duration_seconds"`
	TotalRequests int                      `json:"total_requests"`
	Endpoints     map[string]EndpointStats `json:"endpoints"`
}

type RunReport struct {
	ID            string        `json:"run_id"`
	BaseURL       string        `json:"base_url"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	TotalRequests int           `json:"total_requests"`
	AverageRPS    float64       `json:"average_rps"`
	Levels        []LevelReport `json:"levels"`
}

func BuildReport(run *Run) RunReport {
	report := RunReport{
		ID:         run.ID.String(),
		BaseURL:    run.BaseURL,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}

	for _, level := range run.Levels {
		report.TotalRequests += len(level.Results)
		report.Levels = append(report.Levels, LevelReport{
			Concurrency:   level.Concurrency,
			DurationSec:   level.Elapsed.Seconds(),
			TotalRequests: len(level.Results),
			Endpoints:     level.Stats(),
		})
	}

	if secs := run.FinishedAt.Sub(run.StartedAt).Seconds(); secs > 0 {
		report.AverageRPS = float64(report.TotalRequests) / secs
	}

	return report
}

func WriteJSON(w io.Writer, run *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(BuildReport(run))
}

var csvHeader = []string{
	"timestamp", "level", "endpoint", "method", "status_code",
	"response_time", "response_size", "concurrent_users", "error",
}

// WriteCSV dumps every raw result, one row per request, for offline
// analysis of data the aggregates throw away.
func WriteCSV(w io.Writer, run *Run) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, level := range run.Levels {
		for _, r := range level.Results {
			row := []string{
				r.Timestamp.Format(time.RFC3339Nano),
				strconv.Itoa(level.Concurrency),
				r.Endpoint,
				r.Method,
				strconv.Itoa(r.StatusCode),
				strconv.FormatFloat(r.Duration.Seconds(), 'f', 6, 64),
				strconv.FormatInt(r.Bytes, 10),
				strconv.Itoa(r.Concurrency),
				r.Err,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()

	return cw.Error()
}

const reportHeader = `=== SURGE LOAD TEST REPORT ===
Run ID:	%s
Base URL:	%s
Started:	%s
Finished:	%s
Total Requests:	%d
Average RPS:	%.2f
`

const endpointBlock = `--- %s ---
Requests:	%d
Success Rate:	%.1f%%
Throughput:	%.2f req/s
Latency:	%s
Status Codes:	%s
`

type levelSummary struct {
	avg, p95, errRate float64
	hasLatency        bool
	top               string
}

func summarize(level LevelReport) levelSummary {
	var s levelSummary

	totalFailed := 0
	topCount := -1
	meanSum := 0.0
	means := 0

	for _, name := range sortedKeys(level.Endpoints) {
		st := level.Endpoints[name]

		totalFailed += st.FailedRequests
		if st.TotalRequests > topCount {
			s.top = name
			topCount = st.TotalRequests
		}

		if st.Latency != nil {
			meanSum += st.Latency.Mean
			means++
			if st.Latency.P95 > s.p95 {
				s.p95 = st.Latency.P95
			}
		}
	}

	if level.TotalRequests > 0 {
		s.errRate = float64(totalFailed) / float64(level.TotalRequests)
	}
	if means > 0 {
		s.avg = meanSum / float64(means)
		s.hasLatency = true
	}

	return s
}

func FormatReport(run *Run) string {
	report := BuildReport(run)

	var b strings.Builder
	fmt.Fprintf(&b, reportHeader,
		report.ID,
		report.BaseURL,
		report.StartedAt.Format(time.RFC3339),
		report.FinishedAt.Format(time.RFC3339),
		report.TotalRequests,
		report.AverageRPS,
	)

	b.WriteString("\nLOAD LEVEL SUMMARY:\n")
	b.WriteString("Concurrency | Requests | Avg Time | P95 Time | Error Rate | Top Endpoint\n")

	for _, level := range report.Levels {
		s := summarize(level)

		avg, p95 := "n/a", "n/a"
		if s.hasLatency {
			avg = fmt.Sprintf("%.3fs", s.avg)
			p95 = fmt.Sprintf("%.3fs", s.p95)
		}

		fmt.Fprintf(&b, "%11d | %8d | %8s | %8s | %9.1f%% | %s\n",
			level.Concurrency, level.TotalRequests, avg, p95, s.errRate*100, s.top)
	}

	for _, level := range report.Levels {
		fmt.Fprintf(&b, "\n=== %d CONCURRENT USERS ===\n", level.Concurrency)
		fmt.Fprintf(&b, "Duration:	%.1fs\n", level.DurationSec)
		fmt.Fprintf(&b, "Requests:	%d\n\n", level.TotalRequests)

		for _, name := range sortedKeys(level.Endpoints) {
			st := level.Endpoints[name]
			fmt.Fprintf(&b, endpointBlock,
				strings.ToUpper(name),
				st.TotalRequests,
				(1-st.ErrorRate)*100,
				st.Throughput,
				formatLatency(st.Latency),
				formatCodes(st.StatusCodes),
			)
			for _, sample := range st.ErrorSamples {
				fmt.Fprintf(&b, "  error: %s\n", sample)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func formatLatency(l *LatencyStats) string {
	if l == nil {
		return "n/a"
	}

	return fmt.Sprintf("min=%.3fs mean=%.3fs median=%.3fs p95=%.3fs p99=%.3fs max=%.3fs",
		l.Min, l.Mean, l.Median, l.P95, l.P99, l.Max)
}

func formatCodes(codes map[int]int) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, code := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", code, codes[code]))
	}

	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]EndpointStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// SaveReports writes the analysis JSON, the raw CSV and the text report
// into dir with a shared timestamp. A failing artifact does not stop the
// remaining ones; the first error is returned alongside the paths written.
func SaveReports(dir string, run *Run) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create output dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")

	var paths []string
	var firstErr error

	save := func(name string, write func(io.Writer, *Run) error) {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err == nil {
			err = write(f, run)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("could not save %s: %w", name, err)
			}

			return
		}
		paths = append(paths, path)
	}

	save("analysis_"+stamp+".json", WriteJSON)
	save("results_"+stamp+".csv", WriteCSV)
	save("report_"+stamp+".txt", func(w io.Writer, run *Run) error {
		_, err := io.WriteString(w, FormatReport(run))
		return err
	})

	return paths, firstErr
}
