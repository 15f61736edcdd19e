package surge

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Pacing is the delay a worker sleeps between requests: Base plus a uniform
// random share of Jitter.
type Pacing struct {
	Base   time.Duration
	Jitter time.Duration
}

// StartWorkers launches count workers and returns the channel their results
// arrive on. Workers call attack in a loop until the deadline passes or ctx
// is cancelled; both stop new requests only, a request already in flight is
// allowed to finish. A positive spawnEvery staggers worker starts to ramp
// the load up gradually. The active count handed to attack is the number of
// workers running at that moment, observed, not requested.
func StartWorkers(ctx context.Context, count int, spawnEvery time.Duration, deadline time.Time, pace Pacing, attack func(active int) RequestResult) <-chan RequestResult {
	result := make(chan RequestResult)

	go func() {
		var workerWg sync.WaitGroup
		var active int32

		for i := 0; i < count; i++ {
			if i > 0 && spawnEvery > 0 && !sleep(ctx, spawnEvery) {
				break
			}
			if ctx.Err() != nil || !time.Now().Before(deadline) {
				break
			}

			workerWg.Add(1)
			go func(seed int64) {
				defer workerWg.Done()

				atomic.AddInt32(&active, 1)
				defer atomic.AddInt32(&active, -1)

				rng := rand.New(rand.NewSource(seed))
				for ctx.Err() == nil && time.Now().Before(deadline) {
					result <- attack(int(atomic.LoadInt32(&active)))

					delay := pace.Base
					if pace.Jitter > 0 {
						delay += time.Duration(rng.Int63n(int64(pace.Jitter)))
					}
					if delay > 0 && !sleep(ctx, delay) {
						break
					}
				}
			}(time.Now().UnixNano() + int64(i))
		}

		// close result channel after every worker finishes
		workerWg.Wait()
		close(result)
	}()

	return result
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
