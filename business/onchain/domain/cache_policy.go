package domain

import (
	"fmt"
	"strings"
)

// CachePolicy controls how a query consults the local cache.
type CachePolicy int

const (
	// ReturnCacheDataAndFetch returns a cached page immediately when present
	// and refreshes it from the network in the background.
	ReturnCacheDataAndFetch CachePolicy = iota
	// NetworkOnly always queries the network and refreshes the cache.
	NetworkOnly
	// CacheFirst returns a cached page when present, otherwise queries the network.
	CacheFirst
)

func (p CachePolicy) String() string {
	switch p {
	case NetworkOnly:
		return "network_only"
	case CacheFirst:
		return "cache_first"
	default:
		return "return_cache_data_and_fetch"
	}
}

// ParseCachePolicy parses the config spelling of a policy.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "return_cache_data_and_fetch":
		return ReturnCacheDataAndFetch, nil
	case "network_only":
		return NetworkOnly, nil
	case "cache_first":
		return CacheFirst, nil
	default:
		return 0, fmt.Errorf("unknown cache policy %q", s)
	}
}
