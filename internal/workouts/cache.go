package workouts

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const summariesCacheTTL = time.Hour

// SummariesCache memoizes BuildSummaries results per
// (owner, exercise, muscle group) pair. Every cache key carries the pair's
// record-set version, which is bumped whenever a set of that pair is added,
// updated or deleted, so stale entries simply become unreachable and age out.
// The cache is an optimization only, handlers fall back to recomputing on
// any miss or error.
type SummariesCache struct {
	cache *freecache.Cache

	mu            sync.Mutex
	versions      map[string]uint64
	ownerVersions map[string]uint64
}

func NewSummariesCache(sizeBytes int) *SummariesCache {
	return &SummariesCache{
		cache:         freecache.NewCache(sizeBytes),
		versions:      make(map[string]uint64),
		ownerVersions: make(map[string]uint64),
	}
}

func (c *SummariesCache) Get(ownerID, exercise, muscleGroup string, loc *time.Location) ([]DaySummary, bool) {
	val, err := c.cache.Get(c.key(ownerID, exercise, muscleGroup, loc))
	if err != nil {
		// freecache returns ErrNotFound for both misses and evictions
		return nil, false
	}

	var summaries []DaySummary
	if err := json.Unmarshal(val, &summaries); err != nil {
		log.Errorf("summaries cache, unmarshal entry: %s", err)
		return nil, false
	}
	return summaries, true
}

func (c *SummariesCache) Set(ownerID, exercise, muscleGroup string, loc *time.Location, summaries []DaySummary) {
	val, err := json.Marshal(summaries)
	if err != nil {
		log.Errorf("summaries cache, marshal entry: %s", err)
		return
	}
	if err := c.cache.Set(
		c.key(ownerID, exercise, muscleGroup, loc),
		val,
		int(summariesCacheTTL.Seconds()),
	); err != nil {
		log.Tracef("summaries cache, set entry: %s", err)
	}
}

// Invalidate bumps the record-set version of the pair. Must be called on
// every write touching the pair's sets.
func (c *SummariesCache) Invalidate(ownerID, exercise, muscleGroup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[pairKey(ownerID, exercise, muscleGroup)]++
}

// InvalidateOwner drops all cached summaries of the owner at once, used after
// a purge where the touched pairs are not known.
func (c *SummariesCache) InvalidateOwner(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ownerVersions[ownerID]++
}

// key carries the timezone too, summaries of the same pair differ per
// requested location.
func (c *SummariesCache) key(ownerID, exercise, muscleGroup string, loc *time.Location) []byte {
	pk := pairKey(ownerID, exercise, muscleGroup)
	c.mu.Lock()
	version := c.versions[pk]
	ownerVersion := c.ownerVersions[ownerID]
	c.mu.Unlock()
	return []byte(fmt.Sprintf("%d|%s|%s|%d", ownerVersion, pk, loc.String(), version))
}

func pairKey(ownerID, exercise, muscleGroup string) string {
	return fmt.Sprintf("%s|%s|%s", ownerID, exercise, muscleGroup)
}
