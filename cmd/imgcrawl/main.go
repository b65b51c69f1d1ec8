// Package main provides the entry point for the imgcrawl CLI.
//
// imgcrawl crawls a web site from a seed URL, stays on the seed's host and
// downloads every referenced image under a name derived from its URL.
//
// Usage:
//
//	imgcrawl crawl <seed-url>
//	imgcrawl history [host]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
