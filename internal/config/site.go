package config

import (
	"strings"
	"time"
)

// SiteConfig holds request settings for one host.
type SiteConfig struct {
	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// CrawlSettings are crawl options that can be set in the config file.
// Zero values leave the built-in default in place; Retries is a pointer so
// that zero retries can be configured.
type CrawlSettings struct {
	Retries     *int          `yaml:"retries,omitempty"`
	RetryDelay  time.Duration `yaml:"retryDelay,omitempty"`
	Backoff     string        `yaml:"backoff,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	OutputDir   string        `yaml:"outputDir,omitempty"`
	Digest      string        `yaml:"digest,omitempty"`
	MaxBodySize int64         `yaml:"maxBodySize,omitempty"`
	Proxy       string        `yaml:"proxy,omitempty"`
}

// File represents the structure of the .imgcrawl configuration file.
type File struct {
	// Crawl holds crawl option defaults.
	Crawl CrawlSettings `yaml:"crawl,omitempty"`

	// Defaults applies to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps hostnames (without scheme or port) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the settings for host, merging the site entry over
// the defaults. Host names are matched case-insensitively.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		UserAgent: cf.Defaults.UserAgent,
		Cookie:    cf.Defaults.Cookie,
	}
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				site, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// HeadersFor returns every header to send to host, with the cookie and
// user agent folded in. It returns nil when nothing is configured.
func (cf *File) HeadersFor(host string) map[string]string {
	if cf == nil {
		return nil
	}
	sc := cf.GetSiteConfig(host)

	headers := make(map[string]string, len(sc.Headers)+2)
	for k, v := range sc.Headers {
		headers[k] = v
	}
	if sc.Cookie != "" {
		headers["Cookie"] = sc.Cookie
	}
	if sc.UserAgent != "" {
		headers["User-Agent"] = sc.UserAgent
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
