package live

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const DefaultRecentSize = 10

// RecentFeed keeps the last few events for display. Subscribers never receive
// it; it is not a replay buffer.
type RecentFeed struct {
	cache   *ttlcache.Cache[uint64, Event]
	seq     atomic.Uint64
	started atomic.Bool
}

func NewRecentFeed(size int, ttl time.Duration) *RecentFeed {
	if size <= 0 {
		size = DefaultRecentSize
	}
	opts := []ttlcache.Option[uint64, Event]{
		ttlcache.WithCapacity[uint64, Event](uint64(size)),
		ttlcache.WithDisableTouchOnHit[uint64, Event](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[uint64, Event](ttl))
	}
	return &RecentFeed{cache: ttlcache.New(opts...)}
}

func (f *RecentFeed) Deliver(ev Event) {
	f.cache.Set(f.seq.Add(1), ev, ttlcache.DefaultTTL)
}

// List returns the retained events, newest first.
func (f *RecentFeed) List() []Event {
	items := f.cache.Items()
	keys := make([]uint64, 0, len(items))
	for k, item := range items {
		if item.IsExpired() {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	out := make([]Event, 0, len(keys))
	for _, k := range keys {
		out = append(out, items[k].Value())
	}
	return out
}

// Start runs the expiry loop until Stop.
func (f *RecentFeed) Start() {
	if f.started.CompareAndSwap(false, true) {
		go f.cache.Start()
	}
}

func (f *RecentFeed) Stop() {
	if f.started.CompareAndSwap(true, false) {
		f.cache.Stop()
	}
}

func (f *RecentFeed) StartWithContext(context.Context) {
	f.Start()
}

func (f *RecentFeed) StopWithContext(context.Context) error {
	f.Stop()
	return nil
}
