package storage

import (
	"container/list"
	"fmt"
	"sync"
)

// BufferPool caches a bounded set of pages in memory and hands out
// references under a pin/unpin contract. Eviction picks the
// least-recently-used unpinned frame.
type BufferPool struct {
	capacity int
	disk     *DiskManager

	mu        sync.Mutex
	frames    map[PageID]*frame
	freeList  []*frame
	lru       *list.List // of *frame, front = most-recently-used
	hits      int64
	misses    int64
	evictions int64
}

// frame is a buffer pool slot. Pin count and the dirty flag live here, not
// on the Page itself, so that two fetches of the same page id share one
// reference count.
type frame struct {
	page     *Page
	pinCount int
	dirty    bool
	lruElem  *list.Element
}

// Disk returns the buffer pool's backing disk manager, primarily so
// callers can inspect combined telemetry via its Stats.
func (bp *BufferPool) Disk() *DiskManager { return bp.disk }

// NewBufferPool creates a pool with room for capacity resident pages,
// backed by disk for reads and flushes.
func NewBufferPool(capacity int, disk *DiskManager) *BufferPool {
	bp := &BufferPool{
		capacity: capacity,
		disk:     disk,
		frames:   make(map[PageID]*frame, capacity),
		lru:      list.New(),
	}
	for i := 0; i < capacity; i++ {
		bp.freeList = append(bp.freeList, &frame{})
	}
	return bp
}

// FetchPage returns a reference to page_id, pinning it. The caller must
// balance every successful FetchPage (and NewPage) with exactly one
// UnpinPage. Returns an error when the pool is full of pinned pages, or
// when flushing the evicted victim or reading the page from disk fails.
func (bp *BufferPool) FetchPage(pageID PageID) (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if f, ok := bp.frames[pageID]; ok {
		f.pinCount++
		bp.lru.MoveToFront(f.lruElem)
		bp.hits++
		return f.page, nil
	}
	bp.misses++

	f, err := bp.victimLocked()
	if err != nil {
		return nil, err
	}

	page, err := bp.disk.ReadPage(pageID)
	if err != nil {
		bp.freeList = append(bp.freeList, f)
		return nil, fmt.Errorf("fetch page %d: %w", pageID, err)
	}

	f.page = page
	f.pinCount = 1
	f.dirty = false
	f.lruElem = bp.lru.PushFront(f)
	bp.frames[pageID] = f

	return f.page, nil
}

// NewPage allocates a fresh page id, installs a zeroed page pinned and
// dirty in a frame, and returns a reference to it.
func (bp *BufferPool) NewPage() (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f, err := bp.victimLocked()
	if err != nil {
		return nil, err
	}

	id := bp.disk.AllocatePage()
	f.page = NewPage(id)
	f.pinCount = 1
	f.dirty = true
	f.lruElem = bp.lru.PushFront(f)
	bp.frames[id] = f

	return f.page, nil
}

// victimLocked returns a frame to reuse, preferring the free list over
// evicting an LRU victim. Must be called with bp.mu held.
func (bp *BufferPool) victimLocked() (*frame, error) {
	if n := len(bp.freeList); n > 0 {
		f := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return f, nil
	}

	for elem := bp.lru.Back(); elem != nil; elem = elem.Prev() {
		f := elem.Value.(*frame)
		if f.pinCount != 0 {
			continue
		}

		if f.dirty {
			if err := bp.disk.WritePage(f.page); err != nil {
				return nil, fmt.Errorf("flush victim page %d: %w", f.page.ID, err)
			}
		}
		delete(bp.frames, f.page.ID)
		bp.lru.Remove(elem)
		bp.evictions++
		f.page = nil
		f.dirty = false
		return f, nil
	}

	return nil, fmt.Errorf("buffer pool exhausted: no unpinned frame available")
}

// UnpinPage decrements page_id's pin count. dirty, if true, sticks on the
// frame until the next flush. Returns an error if the page is not
// resident or is already unpinned.
func (bp *BufferPool) UnpinPage(pageID PageID, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f, ok := bp.frames[pageID]
	if !ok {
		return fmt.Errorf("unpin page %d: not resident", pageID)
	}
	if f.pinCount == 0 {
		return fmt.Errorf("unpin page %d: already unpinned", pageID)
	}

	f.pinCount--
	if dirty {
		f.dirty = true
	}
	if f.pinCount == 0 {
		bp.lru.MoveToBack(f.lruElem)
	}

	return nil
}

// FlushPage writes page_id to disk if resident, clearing its dirty flag.
func (bp *BufferPool) FlushPage(pageID PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f, ok := bp.frames[pageID]
	if !ok {
		return fmt.Errorf("flush page %d: not resident", pageID)
	}
	return bp.flushFrameLocked(f)
}

// FlushAllPages writes every dirty resident page to disk.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, f := range bp.frames {
		if err := bp.flushFrameLocked(f); err != nil {
			return err
		}
	}
	return nil
}

func (bp *BufferPool) flushFrameLocked(f *frame) error {
	if !f.dirty {
		return nil
	}
	if err := bp.disk.WritePage(f.page); err != nil {
		return fmt.Errorf("flush page %d: %w", f.page.ID, err)
	}
	f.dirty = false
	return nil
}

// DeletePage removes page_id from the pool and returns its frame to the
// free list. A no-op if the page is not resident; an error if it is
// still pinned.
func (bp *BufferPool) DeletePage(pageID PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f, ok := bp.frames[pageID]
	if !ok {
		return nil
	}
	if f.pinCount > 0 {
		return fmt.Errorf("delete page %d: still pinned", pageID)
	}

	delete(bp.frames, pageID)
	bp.lru.Remove(f.lruElem)
	f.page = nil
	f.dirty = false
	f.pinCount = 0
	f.lruElem = nil
	bp.freeList = append(bp.freeList, f)

	return nil
}

// Stats reports pool occupancy and hit/miss/eviction counters.
func (bp *BufferPool) Stats() map[string]any {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	total := bp.hits + bp.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(bp.hits) / float64(total)
	}

	return map[string]any{
		"capacity":  bp.capacity,
		"size":      len(bp.frames),
		"hits":      bp.hits,
		"misses":    bp.misses,
		"evictions": bp.evictions,
		"hit_rate":  hitRate,
	}
}
