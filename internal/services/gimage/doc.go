// Package gimage implements the optional secondary image-search provider
// (Google Custom Search). When unconfigured the provider is simply absent
// from the pool policy table.
package gimage
