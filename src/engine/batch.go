package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ExecuteBatch runs the requests in the given order, one tagged result
// per request. The unit of atomicity is the individual slice, not the
// batch: a failure (or panic) inside one item is contained there and
// cannot abort the loop or discard the effects of other items.
//
// The returned error is a request-rejection only (reentrancy); per-slice
// failures are reported inside the results.
func (e *Engine) ExecuteBatch(ctx context.Context, requests []Request) ([]SliceResult, error) {
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Leave()

	results := make([]SliceResult, 0, len(requests))
	for i := range requests {
		results = append(results, e.executeIsolated(ctx, requests[i]))
	}

	e.logger.WithFields(logrus.Fields{
		"requested": len(requests),
		"succeeded": countSucceeded(results),
	}).Info("batch executed")

	return results, nil
}

func (e *Engine) executeIsolated(ctx context.Context, req Request) (result SliceResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"order_id": req.OrderID,
				"panic":    r,
			}).Error("slice execution panicked")

			result = e.fail(ctx, req, shortReason(fmt.Sprintf("%v", r)))
		}
	}()

	return e.executeSlice(ctx, req)
}

func countSucceeded(results []SliceResult) int {
	count := 0
	for _, r := range results {
		if r.Succeeded {
			count++
		}
	}
	return count
}
