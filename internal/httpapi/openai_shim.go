package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// ModelsResponse mirrors the OpenAI /v1/models list shape closely enough for
// clients that only check "does a model with this id exist".
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

func (s *Server) handleOpenAIModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ModelsResponse{
		Object: "list",
		Data:   []modelInfo{{ID: s.model, Object: "model", OwnedBy: "vicw"}},
	})
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string               `json:"model"`
	Messages []openAIChatMessage  `json:"messages"`
	Stream   bool                 `json:"stream"`
}

type openAIChatChoice struct {
	Index        int                `json:"index"`
	Message      openAIChatMessage  `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type openAIChatResponse struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []openAIChatChoice  `json:"choices"`
}

// handleOpenAIChatCompletions adapts the last user message in an
// OpenAI-shaped request onto a single /chat turn. Streaming is requested by
// some clients via "stream": true; this is always answered as one
// synthetic chunk (the complete reply), never real token streaming.
func (s *Server) handleOpenAIChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openAIChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	lastUser := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}
	if lastUser == "" {
		respondError(w, http.StatusBadRequest, errMissingMessage)
		return
	}

	result, err := s.orch.Turn(r.Context(), defaultSessionID, lastUser, true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, openAIChatResponse{
		ID:      "chatcmpl-" + time.Now().Format("20060102T150405"),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   s.model,
		Choices: []openAIChatChoice{{
			Index:        0,
			Message:      openAIChatMessage{Role: "assistant", Content: result.Response},
			FinishReason: "stop",
		}},
	})
}
