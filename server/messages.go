package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/search"
)

type postMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type messageResponse struct {
	ID         uuid.UUID `json:"id"`
	Room       string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"createdAt"`
	Deleted    bool      `json:"deleted"`
	DeletedBy  string    `json:"deletedBy,omitempty"`
	Edited     bool      `json:"edited"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		Room:       string(m.Room),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Kind:       string(m.Kind),
		CreatedAt:  m.CreatedAt,
		Deleted:    m.Deleted,
		DeletedBy:  m.DeletedBy,
		Edited:     m.Edited,
	}
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	})
}

// postMessage persists first, then publishes. A failed persistence never
// broadcasts; a failed broadcast of a persisted message is recovered by
// subscribers through catch-up.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body", errors.ErrInvalidArgument))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err))
		return
	}

	message, err := s.service.CreateMessage(r.Context(), room, callerID(r), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	_ = s.dispatcher.Publish(r.Context(), event.NewMessagePosted(message))
	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed message id", errors.ErrInvalidArgument))
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body", errors.ErrInvalidArgument))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err))
		return
	}

	message, err := s.service.EditMessage(r.Context(), id, callerID(r), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	_ = s.dispatcher.Publish(r.Context(), event.NewMessageEdited(message))
	writeJSON(w, http.StatusOK, toMessageResponse(message))
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed message id", errors.ErrInvalidArgument))
		return
	}

	message, err := s.service.DeleteMessage(r.Context(), id, callerID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	_ = s.dispatcher.Publish(r.Context(), event.NewMessageDeleted(message))
	w.WriteHeader(http.StatusNoContent)
}

// messagesSince serves the catch-up read for clients recovering from a gap
// in live delivery.
func (s *Server) messagesSince(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	if !s.service.IsMember(callerID(r), room) {
		s.writeError(w, errors.ErrNotMember)
		return
	}

	since, err := parseTime(r.URL.Query().Get("since"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: unparseable since timestamp", errors.ErrInvalidArgument))
		return
	}

	messages, err := s.service.MessagesSince(room, since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

func (s *Server) pageMessages(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	if !s.service.IsMember(callerID(r), room) {
		s.writeError(w, errors.ErrNotMember)
		return
	}

	query := repositories.PageQuery{Page: 0, Size: s.pageSize}
	params := r.URL.Query()

	if raw := params.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: unparseable page", errors.ErrInvalidArgument))
			return
		}
		query.Page = page
	}
	if raw := params.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: unparseable size", errors.ErrInvalidArgument))
			return
		}
		query.Size = size
	}
	if raw := params.Get("since"); raw != "" {
		since, err := parseTime(raw)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: unparseable since timestamp", errors.ErrInvalidArgument))
			return
		}
		query.Since = &since
	}
	query.IncludeDeleted = params.Get("include_deleted") == "true"

	messages, err := s.service.MessagesPage(room, query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

type searchResponse struct {
	Hits  []searchHit `json:"hits"`
	Total uint64      `json:"total"`
}

type searchHit struct {
	MessageID uuid.UUID `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
}

func (s *Server) searchMessages(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	if !s.service.IsMember(callerID(r), room) {
		s.writeError(w, errors.ErrNotMember)
		return
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, fmt.Errorf("%w: unparseable page", errors.ErrInvalidArgument))
			return
		}
		page = parsed
	}

	hits, total, err := s.index.Search(r.Context(), room, r.URL.Query().Get("q"), page)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err))
		return
	}

	body := searchResponse{Total: total, Hits: lo.Map(hits,
		func(h search.Hit, _ int) searchHit {
			return searchHit{MessageID: h.MessageID, SenderID: h.SenderID, Content: h.Content}
		})}
	writeJSON(w, http.StatusOK, body)
}
