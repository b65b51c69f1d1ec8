// Package config provides the configuration of imgcrawl: the flat Config
// built from CLI flags, and the optional YAML file that supplies crawl
// defaults and per-host request settings (user agent, headers, cookie).
package config
