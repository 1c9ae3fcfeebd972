package services

import (
	"context"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/ports"
	"fmt"
	"sync"
)

// maxConcurrentResolves bounds fan-out against real geocoding providers.
const maxConcurrentResolves = 5

type resolveResult struct {
	index  int
	coords domain.Coordinates
	err    error
}

// resolveVisitLocations resolves every visit's coordinates concurrently.
// The first failure cancels outstanding lookups and is returned.
func resolveVisitLocations(
	ctx context.Context,
	visits []domain.Visit,
	resolver ports.LocationResolver,
) ([]domain.Coordinates, error) {
	out := make([]domain.Coordinates, len(visits))
	if len(visits) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, maxConcurrentResolves)
	resultsCh := make(chan resolveResult, len(visits))
	var wg sync.WaitGroup

	for i, v := range visits {
		wg.Add(1)
		go func(idx int, visit domain.Visit) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				resultsCh <- resolveResult{index: idx, err: err}
				return
			}

			c, err := resolver.ResolveVisit(ctx, visit)
			if err != nil {
				resultsCh <- resolveResult{index: idx, err: fmt.Errorf("resolve visit %q: %w", visit.ID, err)}
				cancel()
				return
			}
			resultsCh <- resolveResult{index: idx, coords: c}
		}(i, v)
	}

	wg.Wait()
	close(resultsCh)

	var firstErr error
	for res := range resultsCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		out[res.index] = res.coords
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return out, nil
}
