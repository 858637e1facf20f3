// Package pagination holds the page cursor of a favorites list and a
// parallel fetcher for page ranges.
//
// The ordering API reports pagination in the response envelope
// (current_page, page_size, total_pages, total, from, to). State mirrors
// that block and is replaced wholesale after every successful page.
//
// Example usage:
//
//	bf := pagination.NewBatchFetcher[[]Item](pagination.PageFetcherFunc[[]Item](loadPage), pagination.DefaultConfig())
//	for _, r := range bf.FetchRange(ctx, 2, state.TotalPages) {
//		if r.Error != nil {
//			break
//		}
//		apply(r.Data)
//	}
//
// The batch fetcher:
//   - Spawns a bounded worker pool (default 4 workers)
//   - Returns one result per page, ordered by page number
//   - Stops starting new pages after the first failure
package pagination
