//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

// IDirectory is the narrow identity contract the chat core consumes:
// user/room lookup and the membership gate. Administration of these facts
// belongs to an outer system; the Put/Set helpers below exist for seeding
// and tests.
type IDirectory interface {
	FindUser(id string) (domain.User, error)
	FindRoom(id domain.RoomID) (domain.Room, error)
	IsMember(userID string, roomID domain.RoomID) bool
}

type Directory struct {
	db  *badger.DB
	log *slog.Logger
}

func NewDirectory(db *badger.DB, log *slog.Logger) *Directory {
	return &Directory{db: db, log: log}
}

type diskUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type diskRoom struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type diskMembership struct {
	Active bool `json:"active"`
}

func userKey(id string) []byte { return []byte("user:" + escapeSegment(id)) }

func roomKey(id domain.RoomID) []byte { return []byte("room:" + escapeSegment(string(id))) }

func membershipKey(roomID domain.RoomID, userID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s",
		escapeSegment(string(roomID)), escapeSegment(userID)))
}

func (d *Directory) FindUser(id string) (domain.User, error) {
	var disk diskUser
	err := d.get(userKey(id), &disk)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: disk.ID, DisplayName: disk.DisplayName}, nil
}

func (d *Directory) FindRoom(id domain.RoomID) (domain.Room, error) {
	var disk diskRoom
	err := d.get(roomKey(id), &disk)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{ID: domain.RoomID(disk.ID), Name: disk.Name}, nil
}

// IsMember reports whether an active membership fact exists right now.
// The fact can change between this check and the caller's next action;
// that staleness window is accepted.
func (d *Directory) IsMember(userID string, roomID domain.RoomID) bool {
	var disk diskMembership
	err := d.get(membershipKey(roomID, userID), &disk)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false
	}
	if err != nil {
		d.log.Warn("membership lookup failed",
			"room_id", roomID, "user_id", userID, "error", err)
		return false
	}
	return disk.Active
}

func (d *Directory) PutUser(u domain.User) error {
	return d.set(userKey(u.ID), diskUser{ID: u.ID, DisplayName: u.DisplayName})
}

func (d *Directory) PutRoom(r domain.Room) error {
	return d.set(roomKey(r.ID), diskRoom{ID: string(r.ID), Name: r.Name})
}

func (d *Directory) SetMembership(roomID domain.RoomID, userID string, active bool) error {
	return d.set(membershipKey(roomID, userID), diskMembership{Active: active})
}

func (d *Directory) get(key []byte, out any) error {
	return d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

func (d *Directory) set(key []byte, in any) error {
	bytes, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
}
