//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

type IMessageRepository interface {
	Store(m domain.Message) error
	Update(m domain.Message) error
	GetByID(id uuid.UUID) (domain.Message, error)
	Since(room domain.RoomID, since time.Time) ([]domain.Message, error)
	Page(room domain.RoomID, q PageQuery) ([]domain.Message, error)
}

// PageQuery describes one offset-paginated read, most recent first.
// Soft-deleted messages are excluded unless IncludeDeleted is set
// (deletion-audit callers only).
type PageQuery struct {
	Page           int
	Size           int
	Since          *time.Time
	IncludeDeleted bool
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// DiskMessage is the storage representation of a domain.Message.
type DiskMessage struct {
	ID         uuid.UUID `json:"id"`
	Room       string    `json:"room"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Kind       string    `json:"kind"`
	At         time.Time `json:"at"`
	Deleted    bool      `json:"deleted,omitempty"`
	DeletedBy  string    `json:"deleted_by,omitempty"`
	Edited     bool      `json:"edited,omitempty"`
}

// messageKey builds the primary key "msg:{room}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding keeps keys in chronological order under
//     Badger's lexicographical iteration.
//  2. The trailing UUID disambiguates two messages landing on the same
//     nanosecond.
func messageKey(room domain.RoomID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", escapeSegment(string(room)), at.UnixNano(), id))
}

// idKey is the secondary index "msgid:{uuid}" -> primary key, so lookups by
// id don't need the room or timestamp.
func idKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func roomPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", escapeSegment(string(room))))
}

// Store persists a new message and its id index in one transaction.
func (m *MessageRepository) Store(msg domain.Message) error {
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	key := messageKey(msg.Room, msg.CreatedAt, msg.ID)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(idKey(msg.ID), key)
	})
}

// Update rewrites an existing message in place. The primary key is derived
// from immutable fields only, so a transitioned copy lands on the same key.
func (m *MessageRepository) Update(msg domain.Message) error {
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	key := messageKey(msg.Room, msg.CreatedAt, msg.ID)
	return m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrMessageNotFound
			}
			return err
		}
		return txn.Set(key, bytes)
	})
}

// GetByID resolves the id index then loads the record. Soft-deleted
// messages remain retrievable here.
func (m *MessageRepository) GetByID(id uuid.UUID) (domain.Message, error) {
	var disk DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		var primary []byte
		if err := item.Value(func(val []byte) error {
			primary = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		record, err := txn.Get(primary)
		if err != nil {
			return err
		}
		return record.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk), nil
}

// Since returns the room's non-deleted messages with CreatedAt strictly
// greater than the given timestamp, oldest first. The padded timestamp in
// the key makes this a single forward seek.
func (m *MessageRepository) Since(room domain.RoomID, since time.Time) ([]domain.Message, error) {
	prefix := roomPrefix(room)
	seekKey := append(append([]byte(nil), prefix...),
		[]byte(fmt.Sprintf("%019d", since.UnixNano()+1))...)

	var disks []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var disk DiskMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			if disk.Deleted {
				continue
			}
			disks = append(disks, disk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(disks, func(d DiskMessage, _ int) domain.Message {
		return toMessage(d)
	}), nil
}

// Page walks the room in reverse chronological order, skipping past pages.
// The offset counts only messages that pass the filters, so a deleted
// message never leaves a hole in a default listing.
func (m *MessageRepository) Page(room domain.RoomID, q PageQuery) ([]domain.Message, error) {
	if q.Size <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive", errors.ErrInvalidArgument)
	}
	if q.Page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", errors.ErrInvalidArgument)
	}

	prefix := roomPrefix(room)
	// Seek past the newest possible timestamp, then walk backwards.
	seekKey := append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
	skip := q.Page * q.Size

	var disks []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var disk DiskMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			if disk.Deleted && !q.IncludeDeleted {
				continue
			}
			if q.Since != nil && !disk.At.After(*q.Since) {
				// Reverse-ordered walk: everything from here on is older.
				break
			}
			if skip > 0 {
				skip--
				continue
			}
			disks = append(disks, disk)
			if len(disks) == q.Size {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(disks, func(d DiskMessage, _ int) domain.Message {
		return toMessage(d)
	}), nil
}

func fromMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:         m.ID,
		Room:       string(m.Room),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Kind:       string(m.Kind),
		At:         m.CreatedAt.UTC(),
		Deleted:    m.Deleted,
		DeletedBy:  m.DeletedBy,
		Edited:     m.Edited,
	}
}

func toMessage(d DiskMessage) domain.Message {
	return domain.Message{
		ID:         d.ID,
		Room:       domain.RoomID(d.Room),
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		Content:    d.Content,
		Kind:       domain.Kind(d.Kind),
		CreatedAt:  d.At.UTC(),
		Deleted:    d.Deleted,
		DeletedBy:  d.DeletedBy,
		Edited:     d.Edited,
	}
}
