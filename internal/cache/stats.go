package cache

import (
	"fmt"
	"time"

	"github.com/roach88/qms/internal/model"
)

// Stats describes the cache contents for one entity type (or all).
type Stats struct {
	Type       string         `json:"type"`
	Loaded     bool           `json:"loaded"`
	Reloading  bool           `json:"reloading"`
	Day        model.Day      `json:"day"`
	LastReload time.Time      `json:"last_reload,omitzero"`
	Reloads    int64          `json:"reloads"`
	Counts     map[string]int `json:"counts"`
	ItemCount  int            `json:"item_count"`
	PerQueue   map[int64]int  `json:"tickets_per_queue,omitempty"`
}

// Stats returns statistics for cache type t.
func (c *Cache) Stats(t model.CacheType) (Stats, error) {
	if !t.Valid() {
		return Stats{}, model.InvalidArgument("cache statistics", fmt.Sprintf("unknown cache type %d", int(t)))
	}
	s := c.snap.Load()
	st := Stats{
		Type:       t.String(),
		Loaded:     c.IsLoaded(),
		Reloading:  c.IsReloading(),
		Day:        s.day,
		LastReload: c.LastReload(),
		Reloads:    c.reloads.Load(),
		Counts:     map[string]int{},
	}

	add := func(ct model.CacheType, n int) {
		if t == model.CacheAll || t == ct {
			st.Counts[ct.String()] = n
			st.ItemCount += n
		}
	}
	add(model.CacheQueues, len(s.queues))
	add(model.CacheCounters, len(s.counters))
	add(model.CacheScreens, len(s.screens))
	add(model.CacheKiosks, len(s.kiosks))
	add(model.CacheParameters, len(s.params))
	add(model.CacheTickets, s.tickets.count())

	if t == model.CacheAll || t == model.CacheTickets {
		st.PerQueue = s.tickets.countByQueue()
	}
	return st, nil
}
