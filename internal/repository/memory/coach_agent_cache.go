package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// CoachBinding is what a coach reference resolves to upstream.
type CoachBinding struct {
	AgentID string
	VoiceID string
}

// CoachAgentCache remembers coach reference -> upstream agent resolutions.
// Only positive results are stored; a miss always falls through to the directory.
type CoachAgentCache struct {
	cache *cache.Cache
}

func NewCoachAgentCache(ttl time.Duration) *CoachAgentCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := cache.New(ttl, 2*ttl)
	return &CoachAgentCache{
		cache: c,
	}
}

func (r *CoachAgentCache) Save(reference string, binding CoachBinding) {
	if reference == "" || binding.AgentID == "" {
		return
	}
	r.cache.Set(reference, binding, cache.DefaultExpiration)
}

func (r *CoachAgentCache) Get(reference string) (CoachBinding, bool) {
	if x, found := r.cache.Get(reference); found {
		return x.(CoachBinding), true
	}
	return CoachBinding{}, false
}

func (r *CoachAgentCache) Delete(reference string) {
	r.cache.Delete(reference)
}

func (r *CoachAgentCache) Len() int {
	return r.cache.ItemCount()
}
