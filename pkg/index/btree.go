package index

import (
	"fmt"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// BTree is a persistent ordered map from int32 keys to Records. All data
// lives in leaf pages; internal pages hold routing keys only. Every page
// access goes through the buffer pool, which is the sole arbiter of page
// memory (the tree owns no pages itself, only rootPageID).
type BTree struct {
	pool       *storage.BufferPool
	rootPageID storage.PageID
}

// frameEntry is one link in Insert's descent stack: the still-pinned page
// and node visited, and the child index taken from it, so a split can be
// promoted into the correct parent at any depth without re-pinning.
type frameEntry struct {
	page       *storage.Page
	node       *node
	childIndex int
}

// NewBTree allocates a fresh empty leaf root and returns a tree over it.
func NewBTree(pool *storage.BufferPool) (*BTree, error) {
	page, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new btree: %w", err)
	}
	root := newLeafNode()
	if err := serializeNode(root, page); err != nil {
		pool.UnpinPage(page.ID, false)
		return nil, fmt.Errorf("new btree: %w", err)
	}
	rootID := page.ID
	if err := pool.UnpinPage(rootID, true); err != nil {
		return nil, fmt.Errorf("new btree: %w", err)
	}
	return &BTree{pool: pool, rootPageID: rootID}, nil
}

func (t *BTree) fetchNode(id storage.PageID) (*node, *storage.Page, error) {
	page, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch node %d: %w", id, err)
	}
	n, err := deserializeNode(page)
	if err != nil {
		t.pool.UnpinPage(id, false)
		return nil, nil, fmt.Errorf("fetch node %d: %w", id, err)
	}
	return n, page, nil
}

// Search locates key and reports whether it is present, returning its
// paired record on success.
func (t *BTree) Search(key int32) (Record, bool, error) {
	pageID := t.rootPageID
	for {
		n, page, err := t.fetchNode(pageID)
		if err != nil {
			return Record{}, false, err
		}
		if n.isLeaf {
			i := lowerBound(n.keys, key)
			found := i < len(n.keys) && n.keys[i] == key
			var rec Record
			if found {
				rec = n.records[i]
			}
			if err := t.pool.UnpinPage(page.ID, false); err != nil {
				return Record{}, false, err
			}
			return rec, found, nil
		}
		i := upperBound(n.keys, key)
		next := n.children[i]
		if err := t.pool.UnpinPage(page.ID, false); err != nil {
			return Record{}, false, err
		}
		pageID = next
	}
}

// Insert adds key/record to the tree, returning false without modifying
// anything if key is already present.
func (t *BTree) Insert(key int32, record Record) (bool, error) {
	var stack []frameEntry

	pageID := t.rootPageID
	for {
		n, page, err := t.fetchNode(pageID)
		if err != nil {
			return false, err
		}
		if n.isLeaf {
			i := lowerBound(n.keys, key)
			if i < len(n.keys) && n.keys[i] == key {
				if err := t.pool.UnpinPage(page.ID, false); err != nil {
					return false, err
				}
				t.unwindStack(stack)
				return false, nil
			}

			n.keys = insertInt32(n.keys, i, key)
			n.records = insertRecord(n.records, i, record)

			if len(n.keys) < ORDER {
				if err := t.writeAndUnpin(page, n, true); err != nil {
					return false, err
				}
				t.unwindStack(stack)
				return true, nil
			}

			promotedKey, newChildID, err := t.splitLeaf(n, page)
			if err != nil {
				return false, err
			}
			if err := t.propagate(stack, promotedKey, newChildID); err != nil {
				return false, err
			}
			return true, nil
		}

		i := upperBound(n.keys, key)
		// Keep this ancestor pinned for the duration of the insert; it is
		// unpinned once the stack unwinds or propagation finishes with it.
		stack = append(stack, frameEntry{page: page, node: n, childIndex: i})
		pageID = n.children[i]
	}
}

// unwindStack unpins every ancestor recorded during a descent that turned
// out not to need any structural change.
func (t *BTree) unwindStack(stack []frameEntry) {
	for _, f := range stack {
		t.pool.UnpinPage(f.page.ID, false)
	}
}

// writeAndUnpin serializes n back into page and unpins it with the given
// dirty hint.
func (t *BTree) writeAndUnpin(page *storage.Page, n *node, dirty bool) error {
	if err := serializeNode(n, page); err != nil {
		t.pool.UnpinPage(page.ID, false)
		return fmt.Errorf("write node %d: %w", page.ID, err)
	}
	if err := t.pool.UnpinPage(page.ID, dirty); err != nil {
		return fmt.Errorf("write node %d: %w", page.ID, err)
	}
	return nil
}

// splitLeaf splits an overflowing leaf already holding the new key/record
// in sorted position. Returns the promoted key (minimum key of the new
// right leaf) and the new leaf's page id. Both leaf pages are left
// unpinned on return.
func (t *BTree) splitLeaf(left *node, leftPage *storage.Page) (int32, storage.PageID, error) {
	mid := len(left.keys) / 2

	rightPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(leftPage.ID, false)
		return 0, 0, fmt.Errorf("split leaf: %w", err)
	}
	right := newLeafNode()
	right.keys = append(right.keys, left.keys[mid:]...)
	right.records = append(right.records, left.records[mid:]...)
	right.nextLeaf = left.nextLeaf

	left.keys = left.keys[:mid]
	left.records = left.records[:mid]
	left.nextLeaf = rightPage.ID

	promotedKey := right.keys[0]

	if err := serializeNode(right, rightPage); err != nil {
		t.pool.UnpinPage(leftPage.ID, false)
		t.pool.UnpinPage(rightPage.ID, false)
		return 0, 0, fmt.Errorf("split leaf: %w", err)
	}
	if err := t.pool.UnpinPage(rightPage.ID, true); err != nil {
		t.pool.UnpinPage(leftPage.ID, false)
		return 0, 0, fmt.Errorf("split leaf: %w", err)
	}

	if err := t.writeAndUnpin(leftPage, left, true); err != nil {
		return 0, 0, err
	}

	return promotedKey, rightPage.ID, nil
}

// splitInternal splits an overflowing internal node that has already had
// the new key/child inserted. The key at mid is promoted and retained in
// neither half.
func (t *BTree) splitInternal(left *node, leftPage *storage.Page) (int32, storage.PageID, error) {
	mid := len(left.keys) / 2
	promotedKey := left.keys[mid]

	rightPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(leftPage.ID, false)
		return 0, 0, fmt.Errorf("split internal: %w", err)
	}
	right := newInternalNode()
	right.keys = append(right.keys, left.keys[mid+1:]...)
	right.children = append(right.children, left.children[mid+1:]...)

	left.keys = left.keys[:mid]
	left.children = left.children[:mid+1]

	if err := serializeNode(right, rightPage); err != nil {
		t.pool.UnpinPage(leftPage.ID, false)
		t.pool.UnpinPage(rightPage.ID, false)
		return 0, 0, fmt.Errorf("split internal: %w", err)
	}
	if err := t.pool.UnpinPage(rightPage.ID, true); err != nil {
		t.pool.UnpinPage(leftPage.ID, false)
		return 0, 0, fmt.Errorf("split internal: %w", err)
	}

	if err := t.writeAndUnpin(leftPage, left, true); err != nil {
		return 0, 0, err
	}

	return promotedKey, rightPage.ID, nil
}

// propagate walks the descent stack from the bottom, inserting the
// promoted key/child into each recorded ancestor and recursively
// splitting when an ancestor overflows. When the stack is exhausted a
// fresh root is allocated over the last split's two halves.
func (t *BTree) propagate(stack []frameEntry, promotedKey int32, newChildID storage.PageID) error {
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, page := top.node, top.page

		insertAt := top.childIndex
		n.keys = insertInt32(n.keys, insertAt, promotedKey)
		n.children = insertPageID(n.children, insertAt+1, newChildID)

		if len(n.keys) < ORDER {
			if err := t.writeAndUnpin(page, n, true); err != nil {
				t.unwindStack(stack)
				return err
			}
			t.unwindStack(stack)
			return nil
		}

		var err error
		promotedKey, newChildID, err = t.splitInternal(n, page)
		if err != nil {
			t.unwindStack(stack)
			return err
		}
	}

	// Stack exhausted: the root itself split. Allocate a new root over
	// the last promoted key and its two children.
	rootPage, err := t.pool.NewPage()
	if err != nil {
		return fmt.Errorf("propagate: allocate new root: %w", err)
	}
	root := newInternalNode()
	root.keys = []int32{promotedKey}
	root.children = []storage.PageID{t.rootPageID, newChildID}

	if err := serializeNode(root, rootPage); err != nil {
		t.pool.UnpinPage(rootPage.ID, false)
		return fmt.Errorf("propagate: serialize new root: %w", err)
	}
	if err := t.pool.UnpinPage(rootPage.ID, true); err != nil {
		return fmt.Errorf("propagate: %w", err)
	}

	t.rootPageID = rootPage.ID
	return nil
}

// Delete removes key and its record, reporting whether it was present.
// No rebalancing, redistribution, or merging happens after removal;
// leaves are allowed to become arbitrarily sparse, including empty.
func (t *BTree) Delete(key int32) (bool, error) {
	pageID := t.rootPageID
	for {
		n, page, err := t.fetchNode(pageID)
		if err != nil {
			return false, err
		}
		if n.isLeaf {
			i := lowerBound(n.keys, key)
			if i >= len(n.keys) || n.keys[i] != key {
				if err := t.pool.UnpinPage(page.ID, false); err != nil {
					return false, err
				}
				return false, nil
			}
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			n.records = append(n.records[:i], n.records[i+1:]...)
			if err := t.writeAndUnpin(page, n, true); err != nil {
				return false, err
			}
			return true, nil
		}

		i := upperBound(n.keys, key)
		next := n.children[i]
		if err := t.pool.UnpinPage(page.ID, false); err != nil {
			return false, err
		}
		pageID = next
	}
}

// RangeScan returns, in ascending key order, every record whose key lies
// in the closed interval [start, end].
func (t *BTree) RangeScan(start, end int32) ([]Record, error) {
	var results []Record

	pageID := t.rootPageID
	for {
		n, page, err := t.fetchNode(pageID)
		if err != nil {
			return nil, err
		}
		if n.isLeaf {
			if err := t.pool.UnpinPage(page.ID, false); err != nil {
				return nil, err
			}
			break
		}
		i := upperBound(n.keys, start)
		next := n.children[i]
		if err := t.pool.UnpinPage(page.ID, false); err != nil {
			return nil, err
		}
		pageID = next
	}

	for pageID != storage.InvalidPageID {
		n, page, err := t.fetchNode(pageID)
		if err != nil {
			return nil, err
		}
		done := false
		for i, k := range n.keys {
			if k > end {
				done = true
				break
			}
			if k >= start {
				results = append(results, n.records[i])
			}
		}
		next := n.nextLeaf
		if err := t.pool.UnpinPage(page.ID, false); err != nil {
			return nil, err
		}
		if done {
			break
		}
		pageID = next
	}

	return results, nil
}

// Height walks the leftmost path from the root to a leaf, counting
// levels. A tree with only a root leaf has height 1.
func (t *BTree) Height() (int, error) {
	height := 0
	pageID := t.rootPageID
	for {
		n, page, err := t.fetchNode(pageID)
		if err != nil {
			return 0, err
		}
		height++
		isLeaf := n.isLeaf
		var next storage.PageID
		if !isLeaf {
			next = n.children[0]
		}
		if err := t.pool.UnpinPage(page.ID, false); err != nil {
			return 0, err
		}
		if isLeaf {
			return height, nil
		}
		pageID = next
	}
}

// Stats reports the tree's root page id and current height, for the
// observability surface. It never holds a pin across the call.
func (t *BTree) Stats() map[string]any {
	height, err := t.Height()
	stats := map[string]any{
		"root_page_id": uint32(t.rootPageID),
	}
	if err != nil {
		stats["height_error"] = err.Error()
	} else {
		stats["height"] = height
	}
	return stats
}

func insertInt32(s []int32, i int, v int32) []int32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertRecord(s []Record, i int, v Record) []Record {
	s = append(s, Record{})
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertPageID(s []storage.PageID, i int, v storage.PageID) []storage.PageID {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
