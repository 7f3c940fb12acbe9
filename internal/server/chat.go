package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/assura-labs/assura-go/internal/dialogue"
	"github.com/assura-labs/assura-go/internal/history"
	"github.com/assura-labs/assura-go/internal/intent"
	"github.com/assura-labs/assura-go/internal/logging"
	"github.com/assura-labs/assura-go/internal/rag"
)

// Chat outcome labels recorded in the chat_requests_total metric.
const (
	outcomeAnswered  = "answered"
	outcomeCached    = "cached"
	outcomeSmallTalk = "small_talk"
)

// handleChat handles POST /api/chat. The message is classified by intent
// first: small talk gets a canned reply without touching the engine, every
// other intent goes through the response cache and then the RAG engine.
// Both sides of the exchange are appended to conversation history when a
// history store is configured.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	intentRes := s.analyzer.Analyze(req.Message)
	log.Debug("chat: intent classified",
		slog.String("intent", intentRes.Intent),
		slog.Float64("intent_confidence", intentRes.Confidence),
	)

	conversationID := s.recordUserTurn(r, req, intentRes)

	resp := chatResponse{
		Intent:           intentRes.Intent,
		SuggestedActions: dialogue.ActionsFor(intentRes.Intent),
		ConversationID:   conversationID,
	}

	var outcome string
	switch {
	case intent.IsSmallTalk(intentRes.Intent):
		direct, _ := dialogue.DirectResponse(intentRes.Intent)
		resp.Answer = direct
		resp.Confidence = 1
		resp.Sources = []rag.Source{}
		outcome = outcomeSmallTalk

	default:
		result, cached := s.answer(r, req.Message)
		resp.Answer = dialogue.Prefix(intentRes.Intent) + result.Answer
		resp.Sources = result.Sources
		resp.Confidence = result.Confidence
		resp.Timings = result.Timings
		resp.Cached = cached
		outcome = outcomeAnswered
		if cached {
			outcome = outcomeCached
		}
	}

	s.recordAssistantTurn(r, conversationID, resp)

	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, resp)
}

// answer serves the question from the response cache when possible, falling
// back to the engine and caching the fresh result. The second return value
// is true for cache hits.
func (s *Server) answer(r *http.Request, question string) (*rag.QueryResult, bool) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	if s.respCache != nil {
		if result, ok := s.respCache.Get(ctx, question); ok {
			return result, true
		}
	}

	result := s.querier.Query(ctx, question)

	// Canned degraded answers are not worth caching: the next attempt may
	// succeed once the backend recovers.
	if s.respCache != nil && result.Answer != rag.DegradedAnswer {
		if err := s.respCache.Set(ctx, question, result); err != nil {
			log.Warn("chat: response cache write failed", slog.Any("error", err))
		}
	}

	return result, false
}

// recordUserTurn appends the user message to conversation history, creating
// a new conversation when the request carries no conversation_id. Returns
// the conversation ID to echo back, or empty when history is disabled or
// the write failed.
func (s *Server) recordUserTurn(r *http.Request, req chatRequest, intentRes intent.Result) string {
	if s.history == nil {
		return ""
	}
	ctx := r.Context()
	log := logging.FromContext(ctx)

	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := s.history.Create(ctx, req.UserID)
		if err != nil {
			log.Warn("chat: conversation create failed", slog.Any("error", err))
			return ""
		}
		conversationID = conv.ID
	} else if _, err := s.history.Get(ctx, conversationID); err != nil {
		log.Warn("chat: unknown conversation, starting fresh",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err),
		)
		conv, err := s.history.Create(ctx, req.UserID)
		if err != nil {
			return ""
		}
		conversationID = conv.ID
	}

	meta := map[string]string{"intent": intentRes.Intent}
	if err := s.history.Append(ctx, conversationID, history.RoleUser, req.Message, meta); err != nil {
		log.Warn("chat: history append failed", slog.Any("error", err))
	}
	return conversationID
}

// recordAssistantTurn appends the assistant reply to conversation history.
func (s *Server) recordAssistantTurn(r *http.Request, conversationID string, resp chatResponse) {
	if s.history == nil || conversationID == "" {
		return
	}
	ctx := r.Context()

	meta := map[string]string{"intent": resp.Intent}
	if resp.Cached {
		meta["cached"] = "true"
	}
	if err := s.history.Append(ctx, conversationID, history.RoleAssistant, resp.Answer, meta); err != nil {
		logging.FromContext(ctx).Warn("chat: history append failed", slog.Any("error", err))
	}
}

// conversationPageSize is the number of recent messages returned by
// GET /api/conversations/{id}.
const conversationPageSize = 50

// handleConversation handles GET /api/conversations/{id}, returning the
// conversation metadata and its most recent messages in chronological order.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "conversation history is disabled", http.StatusNotFound)
		return
	}

	id := r.PathValue("id")
	conv, err := s.history.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	messages, err := s.history.Recent(r.Context(), id, conversationPageSize)
	if err != nil {
		logging.FromContext(r.Context()).Error("conversation: load failed", slog.Any("error", err))
		http.Error(w, "failed to load messages", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{Conversation: conv, Messages: messages})
}
