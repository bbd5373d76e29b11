package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// fanOut runs fn for every id with at most workers in flight. Failures are
// logged and counted; the run continues with the remaining properties.
func fanOut(ctx context.Context, ids []string, workers int, fn func(ctx context.Context, id string) error) error {
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for i, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Int("skipped", len(ids)-i).Msg("run interrupted")
			mu.Lock()
			failed += len(ids) - i
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := fn(ctx, id); err != nil {
				log.Warn().Str("property", id).Err(err).Msg("property sync failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			log.Info().Str("property", id).Msg("property sync ok")
		}(id)
	}

	wg.Wait()
	if failed > 0 {
		return fmt.Errorf("%d of %d properties failed", failed, len(ids))
	}
	return nil
}
