package cds

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
)

// Request names one retrieval: the query to submit and the file to write.
type Request struct {
	OutName string
	Query   Query
}

// SummaryFunc post-processes one downloaded file. It receives the output
// path and the query that produced it.
type SummaryFunc func(ctx context.Context, outName string, query Query) (interface{}, error)

// Result pairs each request with its download and summary outcome.
type Result struct {
	OutName string
	Query   Query
	Summary interface{}
	Err     error
}

// Scheduler runs retrieval requests with bounded concurrency. Each remote
// request occupies a slot for its whole lifetime, queue time included, so
// the bound maps directly onto the store's per-user request limit.
// Summaries run on separate goroutines: a finished download frees its slot
// immediately rather than waiting for processing.
type Scheduler struct {
	fetcher       Fetcher
	maxConcurrent int
	log           *logging.Logger
}

// NewScheduler creates a scheduler. maxConcurrent values below one fall
// back to the store's default limit of 10.
func NewScheduler(fetcher Fetcher, maxConcurrent int, log *logging.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 10
	}
	return &Scheduler{
		fetcher:       fetcher,
		maxConcurrent: maxConcurrent,
		log:           logging.OrNop(log),
	}
}

// Run retrieves every request against the dataset, calling summary (when
// not nil) on each file as soon as its download completes. Results are
// returned in request order. Individual failures are recorded per result;
// Run itself only fails when the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, dataset string, requests []Request, summary SummaryFunc) ([]Result, error) {
	results := make([]Result, len(requests))
	for i, req := range requests {
		results[i] = Result{OutName: req.OutName, Query: req.Query}
	}

	group, ctx := errgroup.WithContext(ctx)
	slots := make(chan struct{}, s.maxConcurrent)

	var mu sync.Mutex
	done := 0

	// Summaries get their own group so downloads never block on them.
	summaries, sctx := errgroup.WithContext(ctx)

	for i, req := range requests {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return results, ctx.Err()
		}

		group.Go(func() error {
			defer func() { <-slots }()

			err := s.fetcher.Retrieve(ctx, dataset, req.Query, req.OutName)

			mu.Lock()
			done++
			progress := done
			mu.Unlock()

			if err != nil {
				results[i].Err = err
				s.log.Error("retrieval failed",
					zap.String("file", req.OutName),
					zap.Error(err))
				return nil
			}

			s.log.Info("query retrieved",
				zap.Int("done", progress),
				zap.Int("total", len(requests)),
				zap.String("file", req.OutName))

			if summary != nil {
				summaries.Go(func() error {
					out, err := summary(sctx, req.OutName, req.Query)
					if err != nil {
						results[i].Err = err
						return nil
					}
					results[i].Summary = out
					return nil
				})
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	if err := summaries.Wait(); err != nil {
		return results, err
	}
	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	return results, nil
}
