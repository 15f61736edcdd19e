package surge

import (
	"context"
	"time"
)

type RunnerConfig struct {
	Duration time.Duration
	RampUp   time.Duration
	Pause    time.Duration
	Pace     Pacing
}

// Runner drives load levels against a target. OnResult and OnLevel are
// optional observers, called from the collecting goroutine only.
type Runner struct {
	client   *Client
	selector *Selector
	config   RunnerConfig

	OnResult func(RequestResult)
	OnLevel  func(concurrency int)
}

func NewRunner(client *Client, selector *Selector, config RunnerConfig) *Runner {
	return &Runner{client: client, selector: selector, config: config}
}

// RunFixed holds a single concurrency level for the configured duration,
// ramping the workers up gradually when a ramp up time is set.
func (r *Runner) RunFixed(ctx context.Context, concurrency int) *RunLevel {
	return r.runLevel(ctx, concurrency, r.config.RampUp)
}

// RunStaircase walks the levels from one worker up to max with a pause
// between levels. Cancellation keeps the levels finished so far.
func (r *Runner) RunStaircase(ctx context.Context, max, step int) []*RunLevel {
	var levels []*RunLevel

	for i, concurrency := range Levels(max, step) {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && r.config.Pause > 0 && !sleep(ctx, r.config.Pause) {
			break
		}

		levels = append(levels, r.runLevel(ctx, concurrency, 0))
	}

	return levels
}

// Levels builds the staircase 1, 1+step, 1+2*step, ... and always ends the
// climb on max itself.
func Levels(max, step int) []int {
	if max < 1 || step < 1 {
		return nil
	}

	var levels []int
	for c := 1; c <= max; c += step {
		levels = append(levels, c)
	}
	if levels[len(levels)-1] != max {
		levels = append(levels, max)
	}

	return levels
}

func (r *Runner) runLevel(ctx context.Context, concurrency int, rampUp time.Duration) *RunLevel {
	if r.OnLevel != nil {
		r.OnLevel(concurrency)
	}

	spawnEvery := time.Duration(0)
	if rampUp > 0 && concurrency > 0 {
		spawnEvery = rampUp / time.Duration(concurrency)
	}

	level := &RunLevel{
		Concurrency: concurrency,
		RampUp:      rampUp,
		Duration:    r.config.Duration,
		StartedAt:   time.Now(),
	}

	deadline := level.StartedAt.Add(r.config.Duration)
	results := StartWorkers(ctx, concurrency, spawnEvery, deadline, r.config.Pace, func(active int) RequestResult {
		return r.client.Do(ctx, r.selector.Pick(), active)
	})

	for result := range results {
		level.Results = append(level.Results, result)
		if r.OnResult != nil {
			r.OnResult(result)
		}
	}

	level.Elapsed = time.Since(level.StartedAt)

	return level
}
