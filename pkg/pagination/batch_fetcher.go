package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPageSkipped marks pages that were never fetched because an earlier
// page failed or the context ended.
var ErrPageSkipped = errors.New("page skipped")

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns a configuration that stays well inside the API's
// request budget.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher loads and prepares one page. It must not mutate shared state;
// results are applied by the caller in page order.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page int) (T, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, page int) (T, error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page int) (T, error) {
	return f(ctx, page)
}

// PageResult represents the result of fetching a single page
type PageResult[T any] struct {
	PageNumber int
	Data       T
	Error      error
}

// BatchFetcher handles parallel fetching of a page range
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchRange fetches pages first..last with a worker pool and returns one
// result per page, ordered by page number. The first failing page stops
// workers from starting new pages; those pages carry ErrPageSkipped.
func (bf *BatchFetcher[T]) FetchRange(ctx context.Context, first, last int) []PageResult[T] {
	if first < 1 {
		first = 1
	}
	if last < first {
		return nil
	}

	start := time.Now()
	total := last - first + 1

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Debug().
		Int("first_page", first).
		Int("last_page", last).
		Int("workers", bf.config.MaxConcurrency).
		Msg("Starting parallel page fetch")

	pageQueue := make(chan int, total)
	for page := first; page <= last; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan PageResult[T], total)

	workers := bf.config.MaxConcurrency
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, cancel, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	results := make([]PageResult[T], total)
	for i := range results {
		results[i] = PageResult[T]{PageNumber: first + i, Error: ErrPageSkipped}
	}

	fetched := 0
	for result := range pageResults {
		results[result.PageNumber-first] = result
		if result.Error == nil {
			fetched++
		}
	}

	log.Debug().
		Int("pages", fetched).
		Int("total", total).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results
}

// worker processes pages from the queue
func (bf *BatchFetcher[T]) worker(ctx context.Context, cancel context.CancelFunc, pageQueue <-chan int, results chan<- PageResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		pageCtx, pageCancel := context.WithTimeout(ctx, bf.config.Timeout)
		data, err := bf.fetcher.FetchPage(pageCtx, pageNum)
		pageCancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")
			cancel()
		}

		// results is buffered for every page, so this never blocks.
		results <- PageResult[T]{PageNumber: pageNum, Data: data, Error: err}
		pagesProcessed++
	}
}
