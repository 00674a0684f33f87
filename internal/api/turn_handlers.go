// Package api provides turn and conversation inspection handlers for DialogPipe endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dialogpipe/dialogpipe/internal/messaging"
	"github.com/dialogpipe/dialogpipe/internal/models"
)

var (
	errMissingBot      = errors.New("bot is required")
	errMissingStoreAPI = errors.New("store is required")
)

// TurnResponse is the result payload of POST /api/messages.
type TurnResponse struct {
	Messages []models.Message `json:"messages"`
}

// MembersAddedRequest is the body of POST /api/conversations/{id}/members.
type MembersAddedRequest struct {
	UserIDs []string `json:"user_ids"`
}

// ConversationResponse is the result payload of GET /api/conversations/{id}.
type ConversationResponse struct {
	Conversation *models.ConversationRecord `json:"conversation,omitempty"`
	Stack        []models.StackEntry        `json:"stack,omitempty"`
}

// messagesHandler handles POST /api/messages
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("messagesHandler invoked", "method", r.Method, "path", r.URL.Path)

	var turn models.Turn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		slog.Warn("messagesHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if turn.ConversationID == "" || turn.UserID == "" {
		slog.Warn("messagesHandler missing identifiers", "conversationID", turn.ConversationID, "userID", turn.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation_id and user_id are required"))
		return
	}

	messages, err := s.bot.HandleTurn(r.Context(), &turn)
	if err != nil {
		slog.Error("messagesHandler turn failed", "error", err, "conversationID", turn.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to handle turn"))
		return
	}

	s.deliver(r.Context(), turn.UserID, messages)
	writeJSONResponse(w, http.StatusOK, models.Success(TurnResponse{Messages: messages}))
}

// deliver forwards turn output over the configured messaging channel. The
// HTTP response already carries the messages, so delivery failures log only.
func (s *Server) deliver(ctx context.Context, userID string, messages []models.Message) {
	if s.msgService == nil || len(messages) == 0 {
		return
	}
	recipient, err := s.msgService.ValidateAndCanonicalizeRecipient(userID)
	if err != nil {
		slog.Debug("deliver skipped non-deliverable recipient", "error", err, "userID", userID)
		return
	}
	if err := messaging.DeliverTurn(ctx, s.msgService, recipient, messages); err != nil {
		slog.Error("deliver failed", "error", err, "recipient", recipient)
	}
}

// membersAddedHandler handles POST /api/conversations/{id}/members
func (s *Server) membersAddedHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("membersAddedHandler invoked", "method", r.Method, "path", r.URL.Path)

	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation id is required"))
		return
	}

	var req MembersAddedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("membersAddedHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if len(req.UserIDs) == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_ids is required"))
		return
	}

	greetings, err := s.bot.HandleMembersAdded(r.Context(), conversationID, req.UserIDs)
	if err != nil {
		slog.Error("membersAddedHandler failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to greet members"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(greetings))
}

// conversationHandler handles GET /api/conversations/{id}
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("conversationHandler invoked", "method", r.Method, "path", r.URL.Path)

	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation id is required"))
		return
	}

	conv, err := s.st.GetConversation(conversationID)
	if err != nil {
		slog.Error("conversationHandler conversation load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if conv == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	stack, err := s.st.GetStack(conversationID)
	if err != nil {
		slog.Error("conversationHandler stack load failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load dialog stack"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(ConversationResponse{Conversation: conv, Stack: stack}))
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
