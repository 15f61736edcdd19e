package surge_test

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/hamzali/surge"
)

func TestLevels(t *testing.T) {
	tt := []struct {
		name      string
		max, step int
		expected  []int
	}{
		{"should step up and end on max", 50, 10, []int{1, 11, 21, 31, 41, 50}},
		{"should append max when the step overshoots", 50, 25, []int{1, 26, 50}},
		{"should cover a short climb", 10, 10, []int{1, 10}},
		{"should walk single steps", 3, 1, []int{1, 2, 3}},
		{"should handle a single worker", 1, 5, []int{1}},
	}

	for _, tc := range tt {
		expected := tc.expected
		max, step := tc.max, tc.step

		t.Run(tc.name, func(st *testing.T) {
			if got := surge.Levels(max, step); !reflect.DeepEqual(expected, got) {
				st.Fatalf("expected %v but got %v", expected, got)
			}
		})
	}
}

func testRunner(t *testing.T, baseURL string, config surge.RunnerConfig) *surge.Runner {
	t.Helper()

	endpoints := []surge.Endpoint{
		{Name: "a", Method: "GET", Path: "/a", Weight: 70},
		{Name: "b", Method: "GET", Path: "/b", Weight: 30},
	}

	selector, err := surge.NewSelector(endpoints, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return surge.NewRunner(surge.NewClient(baseURL, time.Second, 8), selector, config)
}

func TestRunFixed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	t.Run("should hold the level and collect every result", func(st *testing.T) {
		runner := testRunner(st, srv.URL, surge.RunnerConfig{
			Duration: 150 * time.Millisecond,
			Pace:     surge.Pacing{Base: 5 * time.Millisecond},
		})

		observed := 0
		runner.OnResult = func(surge.RequestResult) { observed++ }

		levelSeen := 0
		runner.OnLevel = func(concurrency int) { levelSeen = concurrency }

		level := runner.RunFixed(context.Background(), 3)

		if level.Concurrency != 3 {
			st.Fatalf("expected concurrency 3 but got %d", level.Concurrency)
		}
		if len(level.Results) == 0 {
			st.Fatal("expected results but got none")
		}
		if observed != len(level.Results) {
			st.Fatalf("observer saw %d of %d results", observed, len(level.Results))
		}
		if levelSeen != 3 {
			st.Fatalf("expected level 3 announced but got %d", levelSeen)
		}
		if level.Elapsed < level.Duration {
			st.Fatalf("level finished after %v of %v", level.Elapsed, level.Duration)
		}

		total := 0
		for _, endpointStats := range level.Stats() {
			if endpointStats.ErrorRate != 0 {
				st.Fatalf("unexpected failures: %+v", endpointStats)
			}
			total += endpointStats.TotalRequests
		}
		if total != len(level.Results) {
			st.Fatalf("stats cover %d of %d results", total, len(level.Results))
		}
	})

	t.Run("should ramp workers over the configured time", func(st *testing.T) {
		runner := testRunner(st, srv.URL, surge.RunnerConfig{
			Duration: 150 * time.Millisecond,
			RampUp:   60 * time.Millisecond,
			Pace:     surge.Pacing{Base: 5 * time.Millisecond},
		})

		level := runner.RunFixed(context.Background(), 3)

		if level.RampUp != 60*time.Millisecond {
			st.Fatalf("expected ramp up 60ms but got %v", level.RampUp)
		}
		if len(level.Results) == 0 {
			st.Fatal("expected results but got none")
		}
	})
}

func TestRunStaircase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	t.Run("should walk every level in order", func(st *testing.T) {
		runner := testRunner(st, srv.URL, surge.RunnerConfig{
			Duration: 60 * time.Millisecond,
			Pause:    10 * time.Millisecond,
			Pace:     surge.Pacing{Base: 5 * time.Millisecond},
		})

		levels := runner.RunStaircase(context.Background(), 3, 1)

		got := make([]int, 0, len(levels))
		for _, level := range levels {
			got = append(got, level.Concurrency)
			if len(level.Results) == 0 {
				st.Fatalf("level %d collected nothing", level.Concurrency)
			}
		}

		if expected := []int{1, 2, 3}; !reflect.DeepEqual(expected, got) {
			st.Fatalf("expected levels %v but got %v", expected, got)
		}
	})

	t.Run("should stop on a cancelled context", func(st *testing.T) {
		runner := testRunner(st, srv.URL, surge.RunnerConfig{
			Duration: 60 * time.Millisecond,
			Pace:     surge.Pacing{Base: 5 * time.Millisecond},
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if levels := runner.RunStaircase(ctx, 3, 1); len(levels) != 0 {
			st.Fatalf("expected no levels but got %d", len(levels))
		}
	})
}
