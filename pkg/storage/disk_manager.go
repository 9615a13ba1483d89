package storage

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// DiskManager owns a single backing file and translates between page
// identifiers and byte offsets within it. It never reclaims or compacts
// pages: AllocatePage is a pure monotonic bump, matching the core's
// no-compaction, no-free-list non-goal.
type DiskManager struct {
	file       *os.File
	mu         sync.Mutex
	nextPageID PageID
	reads      int64
	writes     int64
}

// NewDiskManager opens (creating if absent) the backing file at path and
// initializes the next page id from its current size.
func NewDiskManager(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat data file: %w", err)
	}

	return &DiskManager{
		file:       file,
		nextPageID: PageID(info.Size() / PageSize),
	}, nil
}

// ReadPage reads page_id's bytes from the backing file. A short read (the
// page has never been written) is tolerated: the remainder of the page is
// zero-filled and a warning is logged, not returned as an error.
func (dm *DiskManager) ReadPage(pageID PageID) (*Page, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	page := NewPage(pageID)
	offset := int64(pageID) * PageSize

	n, err := dm.file.ReadAt(page.Data[:], offset)
	if err != nil && n < PageSize {
		if !isEOF(err) {
			return nil, fmt.Errorf("read page %d: %w", pageID, err)
		}
		log.Printf("storage: short read for page %d (%d/%d bytes), zero-filling remainder", pageID, n, PageSize)
	}

	dm.reads++
	return page, nil
}

// WritePage writes page's full PageSize bytes at its offset and flushes.
func (dm *DiskManager) WritePage(page *Page) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(page.ID) * PageSize
	if _, err := dm.file.WriteAt(page.Data[:], offset); err != nil {
		return fmt.Errorf("write page %d: %w", page.ID, err)
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("flush page %d: %w", page.ID, err)
	}

	dm.writes++
	return nil
}

// AllocatePage hands out the next unused page id. No bytes are written
// until a later WritePage; allocation is purely logical.
func (dm *DiskManager) AllocatePage() PageID {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	id := dm.nextPageID
	dm.nextPageID++
	return id
}

// Close flushes and closes the backing file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.file.Sync(); err != nil {
		dm.file.Close()
		return fmt.Errorf("final sync: %w", err)
	}
	return dm.file.Close()
}

// Stats reports incidental telemetry about disk activity; these counters
// carry no weight in the on-disk format.
func (dm *DiskManager) Stats() map[string]any {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return map[string]any{
		"next_page_id": dm.nextPageID,
		"reads":        dm.reads,
		"writes":       dm.writes,
	}
}

func isEOF(err error) bool {
	return err != nil && err.Error() == "EOF"
}
