// Package pagination loads the photo collection one page at a time.
//
// A Source owns the pagination state and the ordered item list. Pages are
// fetched strictly sequentially: a RequestNextPage issued while a page is in
// flight, or once the last page has been reached, is a no-op. Completions are
// reported to an Observer as PageReady, PageFailed and Exhausted signals; no
// error is ever returned to the caller of RequestNextPage.
//
// State machine:
//
//	Idle      --RequestNextPage--> Fetching
//	Failed    --RequestNextPage--> Fetching
//	Fetching  --success-->         Idle (or Exhausted on the last page)
//	Fetching  --failure-->         Failed
//	any       --Reset-->           Idle (items cleared, page 1)
//
// Example usage:
//
//	q := dispatch.NewQueue()
//	go q.Run(ctx)
//
//	src, err := pagination.NewSource(q, httpClient, pagination.DefaultConfig(accessKey))
//	if err != nil {
//		return err
//	}
//	src.SetObserver(controller)
//	q.Post(func() { src.RequestNextPage() })
//
// Every method except NewSource must be called from a task running on the
// Source's queue.
//
// Page documents are JSON arrays. Each object contributes one Item built from
// its "id" and "urls.regular" fields. Objects without a usable urls.regular
// are skipped individually; a body that is not a JSON array fails the page.
package pagination
