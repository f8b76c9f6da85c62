// Package cache provides an LRU cache of encoded analysis results with
// msgpack disk persistence.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

// FormatVersion is written into persisted caches. Files with another version
// are discarded on load.
const FormatVersion = 1

// Cache defines the operations shared by the cache implementations.
type Cache interface {
	// Get retrieves a value by key.
	Get(key string) ([]byte, bool)

	// Set stores a key-value pair, evicting the least recently used entries
	// when the cache is full.
	Set(key string, value []byte)

	Delete(key string)
	Clear()
	Len() int

	// Save persists the cache to the given writer.
	Save(w io.Writer) error

	// Load restores the cache from the given reader.
	Load(r io.Reader) error
}

// Entry is a cache entry with metadata.
type Entry struct {
	Key       string    `msgpack:"key"`
	Value     []byte    `msgpack:"value"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// LRUCache is an in-memory LRU cache. It is safe for concurrent use.
type LRUCache struct {
	mu           sync.Mutex
	items        map[string]*listItem
	lru          list // most recent at head
	maxEntries   int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string, value []byte)
}

type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list of cache items.
type list struct {
	head *listItem
	tail *listItem
	len  int
}

func (l *list) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *list) pushFront(item *listItem) {
	item.prev = nil
	item.next = l.head
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list) pushBack(item *listItem) {
	item.next = nil
	item.prev = l.tail
	if l.tail != nil {
		l.tail.next = item
	}
	l.tail = item
	if l.head == nil {
		l.head = item
	}
	l.len++
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// Options configures the LRU cache.
type Options struct {
	// MaxEntries is the maximum number of entries. 0 means unlimited.
	MaxEntries int

	// MaxBytes bounds the total size of the stored values. 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when an entry is evicted to make room.
	OnEvict func(key string, value []byte)
}

// New creates an LRU cache.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:      make(map[string]*listItem),
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		onEvict:    opts.OnEvict,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}
	c.lru.moveToFront(item)
	return item.Value, true
}

// Lookup is Get returning ErrKeyNotFound for a missing key.
func (c *LRUCache) Lookup(key string) ([]byte, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return v, nil
}

// Set stores a value.
func (c *LRUCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		c.currentBytes += int64(len(value) - len(item.Value))
		item.Value = value
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem{Entry: Entry{Key: key, Value: value, CreatedAt: time.Now()}}
	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(len(value))
	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)
	c.currentBytes -= int64(len(item.Value))
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *LRUCache) reset() {
	c.items = make(map[string]*listItem)
	c.lru = list{}
	c.currentBytes = 0
}

// Len returns the number of entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CurrentBytes returns the total size of the stored values.
func (c *LRUCache) CurrentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes
}

// Keys returns the keys from most to least recently used.
func (c *LRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for item := c.lru.head; item != nil; item = item.next {
		keys = append(keys, item.Key)
	}
	return keys
}

func (c *LRUCache) evictIfNeeded() {
	for c.shouldEvict() {
		item := c.lru.tail
		if item == nil || item == c.lru.head {
			// Never evict the entry just written.
			break
		}
		c.lru.unlink(item)
		delete(c.items, item.Key)
		c.currentBytes -= int64(len(item.Value))
		if c.onEvict != nil {
			c.onEvict(item.Key, item.Value)
		}
	}
}

func (c *LRUCache) shouldEvict() bool {
	if c.maxEntries > 0 && c.lru.len > c.maxEntries {
		return true
	}
	return c.maxBytes > 0 && c.currentBytes > c.maxBytes
}

// snapshot is the persisted form of a cache.
type snapshot struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save writes the entries, most recently used first, using msgpack.
func (c *LRUCache) Save(w io.Writer) error {
	c.mu.Lock()
	data := snapshot{Version: FormatVersion, Entries: make([]Entry, 0, len(c.items))}
	for item := c.lru.head; item != nil; item = item.next {
		data.Entries = append(data.Entries, item.Entry)
	}
	c.mu.Unlock()

	if err := msgpack.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	return nil
}

// Load replaces the cache content with a snapshot written by Save. A
// snapshot of another format version leaves the cache empty. Limits apply to
// the loaded entries.
func (c *LRUCache) Load(r io.Reader) error {
	var data snapshot
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("decoding cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	if data.Version != FormatVersion {
		return nil
	}
	for _, entry := range data.Entries {
		if _, dup := c.items[entry.Key]; dup {
			continue
		}
		item := &listItem{Entry: entry}
		c.items[entry.Key] = item
		c.lru.pushBack(item)
		c.currentBytes += int64(len(entry.Value))
	}
	c.evictIfNeeded()
	return nil
}

// PersistToFile saves the cache to path, creating its directory. The file is
// replaced atomically.
func PersistToFile(c Cache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// LoadFromFile loads the cache from path. A missing file is not an error.
func LoadFromFile(c Cache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// Stats holds cache statistics.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// StatsCache wraps an LRU cache with hit and miss counters.
type StatsCache struct {
	*LRUCache
	mu        sync.Mutex
	hitCount  int64
	missCount int64
}

// NewStatsCache creates a cache that tracks statistics.
func NewStatsCache(opts Options) *StatsCache {
	return &StatsCache{LRUCache: New(opts)}
}

// Get retrieves a value and updates statistics.
func (c *StatsCache) Get(key string) ([]byte, bool) {
	val, found := c.LRUCache.Get(key)
	c.mu.Lock()
	if found {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.mu.Unlock()
	return val, found
}

// Stats returns the current statistics.
func (c *StatsCache) Stats() Stats {
	length, size := c.LRUCache.Len(), c.LRUCache.CurrentBytes()
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:       length,
		CurrentBytes: size,
		HitCount:     c.hitCount,
		MissCount:    c.missCount,
	}
}

// HitRate returns the fraction of lookups that hit.
func (c *StatsCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hitCount + c.missCount
	if total == 0 {
		return 0
	}
	return float64(c.hitCount) / float64(total)
}

// ResetStats resets the counters.
func (c *StatsCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hitCount = 0
	c.missCount = 0
}

var (
	_ Cache = (*LRUCache)(nil)
	_ Cache = (*StatsCache)(nil)
)
