package model

import (
	"fmt"
	"strconv"
	"strings"
)

// CacheType selects one structure of the queue cache for invalidation or
// statistics. The integer values match the operator API.
type CacheType int

const (
	CacheAll        CacheType = 0
	CacheTickets    CacheType = 1
	CacheQueues     CacheType = 2
	CacheScreens    CacheType = 3
	CacheParameters CacheType = 4
	CacheCounters   CacheType = 5
	CacheKiosks     CacheType = 6
)

var cacheTypeNames = map[CacheType]string{
	CacheAll:        "all",
	CacheTickets:    "tickets",
	CacheQueues:     "queues",
	CacheScreens:    "screens",
	CacheParameters: "parameters",
	CacheCounters:   "counters",
	CacheKiosks:     "kiosks",
}

// Valid reports whether t is a known cache type.
func (t CacheType) Valid() bool {
	_, ok := cacheTypeNames[t]
	return ok
}

func (t CacheType) String() string {
	if name, ok := cacheTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("cache(%d)", int(t))
}

// ParseCacheType accepts a name ("tickets") or the numeric code ("1").
func ParseCacheType(s string) (CacheType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		t := CacheType(n)
		if !t.Valid() {
			return 0, InvalidArgument("parse cache type", fmt.Sprintf("unknown cache type %d", n))
		}
		return t, nil
	}
	lower := strings.ToLower(s)
	for t, name := range cacheTypeNames {
		if name == lower {
			return t, nil
		}
	}
	return 0, InvalidArgument("parse cache type", fmt.Sprintf("unknown cache type %q", s))
}
