package index

import "errors"

var (
	// ErrDuplicateKey names the case of an Insert whose key is already
	// present. BTree.Insert itself reports that case as a false result, not
	// as this error.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyNotFound names the case of a Delete whose key is absent.
	// BTree.Delete itself reports that case as a false result, not as this
	// error.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBufferPoolExhausted names the case where no page can be obtained
	// from the buffer pool (no free or unpinned frame available). The tree
	// returns the buffer pool's own wrapped error in that case, not this one.
	ErrBufferPoolExhausted = errors.New("buffer pool exhausted")
)
