// Package crawler implements the traversal and retry engine of imgcrawl.
//
// # Architecture
//
// The package is built around the Spider type, which coordinates a crawl
// run. A run starts from a seed URL, fetches pages, extracts anchor and image
// references, restricts further traversal to the seed's host and downloads
// every referenced image under a content-addressed file name.
//
// # Components
//
//   - Resolve: turns a possibly-relative reference into an absolute URL
//   - Scope: host scoping and fragment exclusion for discovered links
//   - Frontier: the visited and failed sets, the only shared crawl state
//   - Fetcher: one fetch attempt plus the retry decision for pages and images
//   - Extract: anchor href and image src collection via golang.org/x/net/html
//   - ImageDownloader: destination naming and persistence of image bodies
//   - Spider: the bounded worker pool that drives a run to completion
//
// # Concurrency
//
// Discovery never fetches directly. Admitted URLs are pushed onto a single
// queue that a fixed number of workers drain. A failed attempt that still
// has retry budget is handed to a Clock timer, which pushes the task back
// onto the queue when it fires; the worker is free in the meantime.
//
// A run is complete when the number of outstanding tasks (queued, running or
// waiting for a retry timer) drops to zero. Spider.Run returns at that point,
// or when its context is cancelled, with a model.Summary of the run.
//
// # Usage
//
//	transport, err := crawler.NewHTTPTransport(crawler.WithUserAgent("imgcrawl"))
//	spider := crawler.NewSpider(transport, storage.NewFileStore(),
//	    crawler.WithConcurrency(16),
//	    crawler.WithRetryDelay(time.Second),
//	)
//	summary, err := spider.Run(ctx, "https://example.com/")
package crawler
