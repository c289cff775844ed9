// Package cache is the content-addressed Analysis Cache: for a given
// (content-hash, prompt-kind) pair, the vision backend is called at most
// once across the lifetime of the cache file (spec.md §4.4).
//
// Adapted from the teacher's internal/stash/cache.go TagCache — the same
// sync.RWMutex-guarded map shape, generalized from a single-level
// name→ID cache to a two-level content-hash→prompt-kind→payload cache,
// and given a load/flush lifecycle backed by a YAML file instead of living
// only in memory for one GraphQL session.
package cache

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
	"github.com/racelens/organizer/internal/vision"
)

// PromptKind identifies which vision operation an Entry's payload came from.
type PromptKind string

const (
	PromptDescribeOneFace   PromptKind = "describe_one_face"
	PromptDetectAllSubjects PromptKind = "detect_all_subjects"
)

// FlushEvery is the default number of successful writes between automatic
// flushes to disk (spec.md §4.4's "at least every N successful entries",
// default N=5).
const FlushEvery = 5

// Entry is one cached analysis payload. Only one of Description/Subjects is
// populated, depending on the PromptKind it was stored under.
type Entry struct {
	Description string                   `yaml:"description,omitempty"`
	Subjects    []vision.SubjectDetection `yaml:"subjects,omitempty"`
}

// document is the on-disk shape: content-hash -> prompt-kind -> Entry.
// Schema is private to the tool (spec.md §6) but forward-compatible: yaml.v3
// ignores unknown fields inside an Entry on read, so they are dropped (and not
// written back on the next flush). Every top-level key is read as a content
// hash and every second-level key as a prompt kind.
type document map[string]map[string]Entry

// Cache is the in-memory, periodically-flushed Analysis Cache.
type Cache struct {
	mu           sync.RWMutex
	path         string
	data         document
	dirtySinceFl int
}

// Load reads path into a new Cache. A missing file is not an error — it
// means an empty cache, matching "caller may delete the file to force
// recomputation" (spec.md §4.4).
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, data: make(document)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryCacheIO, "cache.load", err)
	}

	if err := yaml.Unmarshal(raw, &c.data); err != nil {
		return nil, apperr.Wrap(apperr.CategoryCacheIO, "cache.load", err)
	}
	if c.data == nil {
		c.data = make(document)
	}
	return c, nil
}

// Get retrieves a cached Entry for (contentHash, kind). Reads may run
// concurrently (spec.md §5: "cache reads may be concurrent").
func (c *Cache) Get(contentHash string, kind PromptKind) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byKind, ok := c.data[contentHash]
	if !ok {
		return Entry{}, false
	}
	entry, ok := byKind[string(kind)]
	return entry, ok
}

// Put stores entry under (contentHash, kind) and flushes to disk every
// FlushEvery successful writes (spec.md §4.4). Cache writes are serialized
// by c.mu (spec.md §5: "cache writes are serialized").
func (c *Cache) Put(contentHash string, kind PromptKind, entry Entry) error {
	c.mu.Lock()
	if c.data[contentHash] == nil {
		c.data[contentHash] = make(map[string]Entry)
	}
	c.data[contentHash][string(kind)] = entry
	c.dirtySinceFl++
	shouldFlush := c.dirtySinceFl >= FlushEvery
	c.mu.Unlock()

	if shouldFlush {
		return c.Flush()
	}
	return nil
}

// Flush atomically writes the cache to disk. A flush failure is logged and
// does not abort the run (spec.md §7: "Cache I/O error on flush → logged;
// in-memory cache continues; next successful flush supersedes").
func (c *Cache) Flush() error {
	c.mu.Lock()
	raw, err := yaml.Marshal(c.data)
	if err == nil {
		c.dirtySinceFl = 0
	}
	c.mu.Unlock()

	if err != nil {
		logging.Errorf("cache: failed to marshal for flush: %v", err)
		return apperr.Wrap(apperr.CategoryCacheIO, "cache.flush", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		logging.Errorf("cache: failed to write temp file %s: %v", tmp, err)
		return apperr.Wrap(apperr.CategoryCacheIO, "cache.flush", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		logging.Errorf("cache: failed to rename %s -> %s: %v", tmp, c.path, err)
		return apperr.Wrap(apperr.CategoryCacheIO, "cache.flush", err)
	}
	return nil
}

// Len reports the number of distinct content hashes tracked, for reporting.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
