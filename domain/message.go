// Package domain contains core concepts of the chat system.
// This file defines Message values and their allowed transitions.
// Messages are immutable; id, room, sender and creation time never change
// after persistence. State changes go through the With* transitions, which
// return a new value instead of mutating shared state.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates message content types. Only KindText is produced today;
// the other variants are reserved for rich content.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindImage Kind = "IMAGE"
	KindFile  Kind = "FILE"
)

// Message represents one durable chat event.
type Message struct {
	ID         uuid.UUID
	Room       RoomID
	SenderID   string
	SenderName string // denormalized display name, captured at write time
	Content    string // post-sanitization
	Kind       Kind
	CreatedAt  time.Time
	Deleted    bool
	DeletedBy  string
	Edited     bool
}

// WithDeleted returns a copy marked as soft-deleted by the given user.
// Content and the edited flag are left untouched.
func (m Message) WithDeleted(by string) Message {
	m.Deleted = true
	m.DeletedBy = by
	return m
}

// WithEdited returns a copy carrying the replacement content and the
// edited flag.
func (m Message) WithEdited(content string) Message {
	m.Content = content
	m.Edited = true
	return m
}
