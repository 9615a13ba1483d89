package admin

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// handlePageChecksum fetches a page through the buffer pool, hashes its
// raw bytes with blake2b, and immediately unpins it: the pin never
// outlives this request, and the digest is never written back to the
// page or the backing file.
func (s *Server) handlePageChecksum(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "invalid page id", http.StatusBadRequest)
		return
	}
	pageID := storage.PageID(id)

	page, err := s.engine.Pool().FetchPage(pageID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	digest := blake2b.Sum256(page.Data[:])
	if err := s.engine.Pool().UnpinPage(pageID, false); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"page_id":   uint32(pageID),
		"blake2b":   hex.EncodeToString(digest[:]),
		"page_size": storage.PageSize,
	})
}
