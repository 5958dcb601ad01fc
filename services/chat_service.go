//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
)

// Sanitizer is the narrow contract the pipeline consumes: deterministic,
// side-effect free text cleaning. The second return lists the censored
// words, for logging only.
type Sanitizer interface {
	Sanitize(text string) (string, []string)
}

type IChatService interface {
	CreateMessage(ctx context.Context, room domain.RoomID, userID, rawContent string) (domain.Message, error)
	EditMessage(ctx context.Context, id uuid.UUID, byUser, rawContent string) (domain.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID, byUser string) (domain.Message, error)
	MessagesSince(room domain.RoomID, since time.Time) ([]domain.Message, error)
	MessagesPage(room domain.RoomID, q repositories.PageQuery) ([]domain.Message, error)
	IsMember(userID string, room domain.RoomID) bool
}

// ChatService is the ingestion pipeline and catch-up read path. It persists
// but never broadcasts: the transport edge publishes after a successful
// return, keeping persistence and distribution independently retryable.
type ChatService struct {
	log       *slog.Logger
	directory repositories.IDirectory
	messages  repositories.IMessageRepository
	sanitizer Sanitizer
}

func NewChatService(log *slog.Logger, directory repositories.IDirectory,
	messages repositories.IMessageRepository, sanitizer Sanitizer) *ChatService {
	return &ChatService{
		log:       log,
		directory: directory,
		messages:  messages,
		sanitizer: sanitizer,
	}
}

// CreateMessage runs the ordered gates: input validation, membership,
// sender and room resolution, sanitization, then one atomic write. Any
// gate failure short-circuits with no store write and no broadcast.
func (s *ChatService) CreateMessage(ctx context.Context, room domain.RoomID,
	userID, rawContent string) (domain.Message, error) {
	room = domain.RoomID(strings.TrimSpace(string(room)))
	userID = strings.TrimSpace(userID)
	rawContent = strings.TrimSpace(rawContent)
	if room == "" || userID == "" || rawContent == "" {
		return domain.Message{}, fmt.Errorf(
			"%w: room, user and content must be non-empty", errors.ErrInvalidArgument)
	}

	if !s.directory.IsMember(userID, room) {
		return domain.Message{}, errors.ErrNotMember
	}

	sender, err := s.directory.FindUser(userID)
	if err != nil {
		return domain.Message{}, err
	}
	if _, err := s.directory.FindRoom(room); err != nil {
		return domain.Message{}, err
	}

	content, censored := s.sanitizer.Sanitize(rawContent)
	lang := whatlanggo.Detect(content).Lang.Iso6391()

	message := domain.Message{
		ID:         uuid.New(),
		Room:       room,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Content:    content,
		Kind:       domain.KindText,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.messages.Store(message); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}

	s.log.InfoContext(ctx, "message persisted",
		"message_id", message.ID,
		"room_id", message.Room,
		"sender_id", message.SenderID,
		"lang", lang,
		"censored_words", len(censored))
	return message, nil
}

// DeleteMessage marks the message as soft-deleted. Only an active member
// of the message's room may delete it; deleting an already-deleted message
// is a no-op that still succeeds.
func (s *ChatService) DeleteMessage(ctx context.Context, id uuid.UUID,
	byUser string) (domain.Message, error) {
	message, err := s.messages.GetByID(id)
	if err != nil {
		return domain.Message{}, err
	}
	if !s.directory.IsMember(byUser, message.Room) {
		return domain.Message{}, errors.ErrNotMember
	}
	if message.Deleted {
		return message, nil
	}

	deleted := message.WithDeleted(byUser)
	if err := s.messages.Update(deleted); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}

	s.log.InfoContext(ctx, "message soft-deleted",
		"message_id", id, "room_id", message.Room, "deleted_by", byUser)
	return deleted, nil
}

// EditMessage replaces the content of an existing message. Only the
// original sender may edit; a deleted message cannot be edited.
func (s *ChatService) EditMessage(ctx context.Context, id uuid.UUID,
	byUser, rawContent string) (domain.Message, error) {
	rawContent = strings.TrimSpace(rawContent)
	if rawContent == "" {
		return domain.Message{}, fmt.Errorf(
			"%w: content must be non-empty", errors.ErrInvalidArgument)
	}

	message, err := s.messages.GetByID(id)
	if err != nil {
		return domain.Message{}, err
	}
	if message.Deleted {
		return domain.Message{}, fmt.Errorf(
			"%w: deleted message cannot be edited", errors.ErrInvalidArgument)
	}
	if message.SenderID != byUser {
		return domain.Message{}, errors.ErrNotSender
	}

	content, _ := s.sanitizer.Sanitize(rawContent)
	edited := message.WithEdited(content)
	if err := s.messages.Update(edited); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}

	s.log.InfoContext(ctx, "message edited",
		"message_id", id, "room_id", message.Room)
	return edited, nil
}

// MessagesSince is the catch-up read for clients that missed live events:
// all non-deleted messages with CreatedAt strictly after the cursor.
func (s *ChatService) MessagesSince(room domain.RoomID, since time.Time) ([]domain.Message, error) {
	messages, err := s.messages.Since(room, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	return messages, nil
}

// MessagesPage is the offset-paginated history read, most recent first.
func (s *ChatService) MessagesPage(room domain.RoomID, q repositories.PageQuery) ([]domain.Message, error) {
	messages, err := s.messages.Page(room, q)
	if err != nil {
		if stderrors.Is(err, errors.ErrInvalidArgument) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	return messages, nil
}

// IsMember exposes the membership gate to the transport edge, which must
// check before granting a stream.
func (s *ChatService) IsMember(userID string, room domain.RoomID) bool {
	return s.directory.IsMember(userID, room)
}
