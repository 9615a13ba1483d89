package index

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// ORDER bounds the B+Tree's fanout: a node may hold at most ORDER-1 keys
// before it must split.
const ORDER = 4

// node is the in-memory decoding of one page: either a leaf (carrying
// records and a next-leaf pointer) or an internal routing node (carrying
// child page ids).
type node struct {
	isLeaf   bool
	keys     []int32
	children []storage.PageID // internal only, len == len(keys)+1
	records  []Record         // leaf only, len == len(keys)
	nextLeaf storage.PageID   // leaf only
}

func newLeafNode() *node {
	return &node{isLeaf: true, nextLeaf: storage.InvalidPageID}
}

func newInternalNode() *node {
	return &node{isLeaf: false}
}

// serializeNode encodes n into page.Data per the fixed little-endian
// layout: is_leaf(1) + key_count(8) + keys(4*count) + children or records
// + next_leaf(4, leaf only).
func serializeNode(n *node, page *storage.Page) error {
	buf := page.Data[:]
	if n.isLeaf {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
	binary.LittleEndian.PutUint64(buf[1:9], uint64(len(n.keys)))

	off := 9
	for _, k := range n.keys {
		binary.LittleEndian.PutUint32(buf[off:], uint32(k))
		off += 4
	}

	if n.isLeaf {
		for _, r := range n.records {
			size := r.GetSize()
			if off+size > storage.PageSize-4 {
				return fmt.Errorf("serialize leaf node: records overflow page")
			}
			r.Serialize(buf[off:])
			off += size
		}
		binary.LittleEndian.PutUint32(buf[storage.PageSize-4:], uint32(n.nextLeaf))
		return nil
	}

	for _, c := range n.children {
		if off+4 > storage.PageSize {
			return fmt.Errorf("serialize internal node: children overflow page")
		}
		binary.LittleEndian.PutUint32(buf[off:], uint32(c))
		off += 4
	}
	return nil
}

// deserializeNode decodes page.Data into a node.
func deserializeNode(page *storage.Page) (*node, error) {
	buf := page.Data[:]
	if len(buf) < 9 {
		return nil, fmt.Errorf("deserialize node: page too small")
	}
	isLeaf := buf[0] != 0
	keyCount := binary.LittleEndian.Uint64(buf[1:9])

	off := 9
	keys := make([]int32, keyCount)
	for i := range keys {
		keys[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}

	n := &node{isLeaf: isLeaf, keys: keys}

	if isLeaf {
		records := make([]Record, keyCount)
		for i := range records {
			r, consumed, err := DeserializeRecord(buf[off:])
			if err != nil {
				return nil, fmt.Errorf("deserialize leaf node: record %d: %w", i, err)
			}
			records[i] = r
			off += consumed
		}
		n.records = records
		n.nextLeaf = storage.PageID(binary.LittleEndian.Uint32(buf[storage.PageSize-4:]))
		return n, nil
	}

	children := make([]storage.PageID, keyCount+1)
	for i := range children {
		children[i] = storage.PageID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	n.children = children
	return n, nil
}

// upperBound returns the index of the first key strictly greater than
// key, or len(keys) if none is.
func upperBound(keys []int32, key int32) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid] <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// lowerBound returns the index of the first key greater than or equal to
// key, or len(keys) if none is.
func lowerBound(keys []int32, key int32) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
