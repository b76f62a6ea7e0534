package cds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher records retrievals and tracks how many run at once.
type stubFetcher struct {
	mu       sync.Mutex
	calls    []string
	active   int32
	maxSeen  int32
	delay    time.Duration
	failures map[string]error
}

func (f *stubFetcher) Retrieve(ctx context.Context, dataset string, query Query, outName string) error {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, outName)
	f.mu.Unlock()

	if f.failures != nil {
		if err, ok := f.failures[outName]; ok {
			return err
		}
	}
	return nil
}

func namedRequests(n int) []Request {
	requests := make([]Request, n)
	for i := range requests {
		requests[i] = Request{
			OutName: fmt.Sprintf("out_%d.zip", i),
			Query:   Query{"index": i},
		}
	}
	return requests
}

func TestSchedulerRunsEverything(t *testing.T) {
	fetcher := &stubFetcher{}
	s := NewScheduler(fetcher, 3, nil)

	results, err := s.Run(context.Background(), "test-dataset", namedRequests(7), nil)
	require.NoError(t, err)
	require.Len(t, results, 7)

	for i, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, fmt.Sprintf("out_%d.zip", i), res.OutName)
	}
	assert.Len(t, fetcher.calls, 7)
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	fetcher := &stubFetcher{delay: 20 * time.Millisecond}
	s := NewScheduler(fetcher, 2, nil)

	_, err := s.Run(context.Background(), "test-dataset", namedRequests(8), nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.maxSeen), int32(2))
}

func TestSchedulerRunsSummaries(t *testing.T) {
	fetcher := &stubFetcher{}
	s := NewScheduler(fetcher, 2, nil)

	summary := func(ctx context.Context, outName string, query Query) (interface{}, error) {
		return "summary of " + outName, nil
	}

	results, err := s.Run(context.Background(), "test-dataset", namedRequests(3), summary)
	require.NoError(t, err)

	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("summary of out_%d.zip", i), res.Summary)
	}
}

func TestSchedulerRecordsPerRequestErrors(t *testing.T) {
	boom := errors.New("store maintenance")
	fetcher := &stubFetcher{failures: map[string]error{"out_1.zip": boom}}
	s := NewScheduler(fetcher, 2, nil)

	results, err := s.Run(context.Background(), "test-dataset", namedRequests(3), nil)
	require.NoError(t, err, "individual failures should not fail the run")

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
}

func TestSchedulerSummaryErrorIsPerResult(t *testing.T) {
	fetcher := &stubFetcher{}
	s := NewScheduler(fetcher, 2, nil)

	summary := func(ctx context.Context, outName string, query Query) (interface{}, error) {
		if outName == "out_0.zip" {
			return nil, errors.New("corrupt archive")
		}
		return "ok", nil
	}

	results, err := s.Run(context.Background(), "test-dataset", namedRequests(2), summary)
	require.NoError(t, err)

	assert.Error(t, results[0].Err)
	assert.Nil(t, results[0].Summary)
	assert.Equal(t, "ok", results[1].Summary)
}

func TestSchedulerHonorsCancellation(t *testing.T) {
	fetcher := &stubFetcher{delay: time.Second}
	s := NewScheduler(fetcher, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := s.Run(ctx, "test-dataset", namedRequests(5), nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSchedulerDefaultsConcurrency(t *testing.T) {
	s := NewScheduler(&stubFetcher{}, 0, nil)
	assert.Equal(t, 10, s.maxConcurrent)
}

func TestSchedulerSummariesDoNotBlockDownloads(t *testing.T) {
	const total = 4
	fetcher := &stubFetcher{}
	s := NewScheduler(fetcher, 1, nil)

	release := make(chan struct{})
	summary := func(ctx context.Context, outName string, query Query) (interface{}, error) {
		<-release
		return outName, nil
	}

	done := make(chan struct{})
	var results []Result
	go func() {
		defer close(done)
		results, _ = s.Run(context.Background(), "test-dataset", namedRequests(total), summary)
	}()

	// With a single slot, later downloads can only complete while the
	// earlier summaries are still blocked.
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return len(fetcher.calls) == total
	}, 2*time.Second, 5*time.Millisecond, "downloads stalled behind blocked summaries")

	select {
	case <-done:
		t.Fatal("run finished before summaries were released")
	default:
	}

	close(release)
	<-done

	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.NotNil(t, res.Summary)
	}
}
