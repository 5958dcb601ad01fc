// Package event defines the domain events the dispatcher fans out to live
// connections and permanent sinks. Each event carries its wire name and the
// JSON payload shape delivered to subscribers.
package event

import (
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

// Wire names of the framed events, as seen by subscribed clients.
const (
	NameNewMessage     = "new-message"
	NameMessageEdited  = "message-edited"
	NameMessageDeleted = "message-deleted"
)

type DomainEvent interface {
	RoomID() domain.RoomID
	Name() string
}

type MessagePosted struct {
	ID         uuid.UUID     `json:"id"`
	Room       domain.RoomID `json:"roomId"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName"`
	Content    string        `json:"content"`
	Kind       domain.Kind   `json:"kind"`
	At         time.Time     `json:"createdAt"`
}

func NewMessagePosted(m domain.Message) MessagePosted {
	return MessagePosted{
		ID:         m.ID,
		Room:       m.Room,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Kind:       m.Kind,
		At:         m.CreatedAt,
	}
}

func (e MessagePosted) RoomID() domain.RoomID { return e.Room }
func (e MessagePosted) Name() string          { return NameNewMessage }

type MessageEdited struct {
	ID       uuid.UUID     `json:"id"`
	Room     domain.RoomID `json:"roomId"`
	SenderID string        `json:"senderId"`
	Content  string        `json:"content"`
	At       time.Time     `json:"createdAt"`
}

func NewMessageEdited(m domain.Message) MessageEdited {
	return MessageEdited{
		ID:       m.ID,
		Room:     m.Room,
		SenderID: m.SenderID,
		Content:  m.Content,
		At:       m.CreatedAt,
	}
}

func (e MessageEdited) RoomID() domain.RoomID { return e.Room }
func (e MessageEdited) Name() string          { return NameMessageEdited }

type MessageDeleted struct {
	ID   uuid.UUID     `json:"id"`
	Room domain.RoomID `json:"roomId"`
	By   string        `json:"deletedBy"`
}

func NewMessageDeleted(m domain.Message) MessageDeleted {
	return MessageDeleted{ID: m.ID, Room: m.Room, By: m.DeletedBy}
}

func (e MessageDeleted) RoomID() domain.RoomID { return e.Room }
func (e MessageDeleted) Name() string          { return NameMessageDeleted }
