// Package model defines the data types shared between the crawl engine,
// report writers and the history database.
//
// The crawler emits CrawlEvent values while it runs. A CrawlReport collects
// them into a per-run record that can be rendered or stored.
package model
