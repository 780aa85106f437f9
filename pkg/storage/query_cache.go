// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// queryCache memoizes read-only Datalog query results by script text.
// lru.Cache is already safe for concurrent use on its own. It is purged
// wholesale on every write, since there is no cheap way to know which
// cached scripts a given mutation invalidates.
type queryCache struct {
	cache *lru.Cache[string, *QueryResult]
}

func newQueryCache(size int) *queryCache {
	c, _ := lru.New[string, *QueryResult](size)
	return &queryCache{cache: c}
}

func (c *queryCache) get(script string) (*QueryResult, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(script)
}

func (c *queryCache) put(script string, result *QueryResult) {
	if c == nil {
		return
	}
	c.cache.Add(script, result)
}

func (c *queryCache) purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}
