package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vicw/internal/message"
	"vicw/internal/offloadqueue"
)

var errMissingMessage = errors.New("message is required")
var errMissingDocument = errors.New("document is required")

// IngestRequest is the optional POST /ingest body: a document enqueued
// straight to the Semantic Manager, skipping the shed path entirely.
type IngestRequest struct {
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Document == "" {
		respondError(w, http.StatusBadRequest, errMissingDocument)
		return
	}

	chunkID := uuid.NewString()
	job := offloadqueue.Job{
		ChunkID:   chunkID,
		SessionID: "ingest",
		Messages: []message.Message{
			{Role: message.RoleUser, Content: req.Document, Timestamp: time.Now(), TokenCount: s.tok.Estimate(req.Document)},
		},
		CreatedAt: time.Now(),
	}
	dropped := s.queue.Enqueue(job)
	respondJSON(w, http.StatusOK, map[string]any{"chunk_id": chunkID, "dropped": dropped})
}
