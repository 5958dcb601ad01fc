package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(room domain.RoomID, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:         uuid.New(),
		Room:       room,
		SenderID:   sender,
		SenderName: sender,
		Content:    content,
		Kind:       domain.KindText,
		CreatedAt:  at,
	}
}

func Test_Store_And_Since_RoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	at := time.Now().UTC()
	stored := []domain.Message{
		testMessage(room, "alice", "first", at),
		testMessage(room, "bob", "second", at.Add(1*time.Minute)),
		testMessage(room, "clara", "third", at.Add(2*time.Minute)),
	}
	for _, m := range stored {
		req.NoError(repo.Store(m))
	}

	// When fetching everything after a point before the first message
	fetched, err := repo.Since(room, at.Add(-1*time.Second))

	// Then all messages come back, oldest first
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal("first", fetched[0].Content)
	req.Equal("third", fetched[2].Content)
}

func Test_Since_Is_Strictly_Greater(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	at := time.Now().UTC()
	m := testMessage(room, "alice", "boundary", at)
	req.NoError(repo.Store(m))

	// A cursor strictly before the message includes it
	before, err := repo.Since(room, at.Add(-1*time.Nanosecond))
	req.NoError(err)
	req.Len(before, 1)

	// A cursor exactly at the message's timestamp excludes it
	exact, err := repo.Since(room, at)
	req.NoError(err)
	req.Empty(exact)

	// And so does any later cursor
	after, err := repo.Since(room, at.Add(1*time.Second))
	req.NoError(err)
	req.Empty(after)
}

func Test_Since_Excludes_Deleted(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	at := time.Now().UTC()
	kept := testMessage(room, "alice", "kept", at)
	removed := testMessage(room, "bob", "removed", at.Add(1*time.Second))
	req.NoError(repo.Store(kept))
	req.NoError(repo.Store(removed))
	req.NoError(repo.Update(removed.WithDeleted("moderator")))

	fetched, err := repo.Since(room, at.Add(-1*time.Second))
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("kept", fetched[0].Content)
}

func Test_Since_Scopes_By_Room(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	req.NoError(repo.Store(testMessage("general", "alice", "here", at)))
	req.NoError(repo.Store(testMessage("random", "bob", "elsewhere", at)))

	fetched, err := repo.Since("general", at.Add(-1*time.Second))
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("here", fetched[0].Content)
}

func Test_Since_Scopes_By_Room_With_Delimiter_In_ID(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	// Room ids are opaque strings; "a" must never see messages of "a:b"
	// even though the latter's raw name starts with the former's.
	at := time.Now().UTC()
	req.NoError(repo.Store(testMessage("a", "alice", "mine", at)))
	req.NoError(repo.Store(testMessage("a:b", "bob", "not yours", at)))

	fetched, err := repo.Since("a", at.Add(-1*time.Second))
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(domain.RoomID("a"), fetched[0].Room)
	req.Equal("mine", fetched[0].Content)

	// And the odd room still reads its own history back
	other, err := repo.Since("a:b", at.Add(-1*time.Second))
	req.NoError(err)
	req.Len(other, 1)
	req.Equal("not yours", other[0].Content)
}

func Test_Page_Scopes_By_Room_With_Delimiter_In_ID(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	req.NoError(repo.Store(testMessage("a", "alice", "mine", at)))
	req.NoError(repo.Store(testMessage("a:b", "bob", "not yours", at)))

	listing, err := repo.Page("a", PageQuery{Page: 0, Size: 10})
	req.NoError(err)
	req.Len(listing, 1)
	req.Equal(domain.RoomID("a"), listing[0].Room)
}

func Test_Page_Descending_With_Offset(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	at := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		m := testMessage(room, "alice", fmt.Sprintf("message %d", i),
			at.Add(time.Duration(i)*time.Minute))
		req.NoError(repo.Store(m))
	}

	// Page 0: the two most recent, newest first
	page0, err := repo.Page(room, PageQuery{Page: 0, Size: 2})
	req.NoError(err)
	req.Len(page0, 2)
	req.Equal("message 5", page0[0].Content)
	req.Equal("message 4", page0[1].Content)

	// Page 1 continues where page 0 stopped
	page1, err := repo.Page(room, PageQuery{Page: 1, Size: 2})
	req.NoError(err)
	req.Len(page1, 2)
	req.Equal("message 3", page1[0].Content)
	req.Equal("message 2", page1[1].Content)

	// The last page is short
	page2, err := repo.Page(room, PageQuery{Page: 2, Size: 2})
	req.NoError(err)
	req.Len(page2, 1)
	req.Equal("message 1", page2[0].Content)
}

func Test_Page_Since_Cursor(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	at := time.Now().UTC()
	for i := 1; i <= 4; i++ {
		m := testMessage(room, "alice", fmt.Sprintf("message %d", i),
			at.Add(time.Duration(i)*time.Minute))
		req.NoError(repo.Store(m))
	}

	cursor := at.Add(2 * time.Minute)
	page, err := repo.Page(room, PageQuery{Page: 0, Size: 10, Since: &cursor})
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("message 4", page[0].Content)
	req.Equal("message 3", page[1].Content)
}

func Test_Page_Deleted_Visibility(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	at := time.Now().UTC()
	kept := testMessage(room, "alice", "kept", at)
	removed := testMessage(room, "bob", "removed", at.Add(1*time.Second))
	req.NoError(repo.Store(kept))
	req.NoError(repo.Store(removed))
	req.NoError(repo.Update(removed.WithDeleted("moderator")))

	// Default listing hides the deleted message
	listing, err := repo.Page(room, PageQuery{Page: 0, Size: 10})
	req.NoError(err)
	req.Len(listing, 1)
	req.Equal("kept", listing[0].Content)

	// Audit listing shows it, flags intact
	audit, err := repo.Page(room, PageQuery{Page: 0, Size: 10, IncludeDeleted: true})
	req.NoError(err)
	req.Len(audit, 2)
	req.True(audit[0].Deleted)
	req.Equal("moderator", audit[0].DeletedBy)
}

func Test_Page_Rejects_Bad_Query(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repo.Page("general", PageQuery{Page: 0, Size: 0})
	req.ErrorIs(err, errors.ErrInvalidArgument)

	_, err = repo.Page("general", PageQuery{Page: -1, Size: 10})
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func Test_GetByID_And_SoftDelete(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	room := domain.RoomID("general")
	m := testMessage(room, "alice", "keep me around", time.Now().UTC())
	req.NoError(repo.Store(m))

	fetched, err := repo.GetByID(m.ID)
	req.NoError(err)
	req.Equal(m.ID, fetched.ID)
	req.Equal(m.Content, fetched.Content)
	req.False(fetched.Deleted)

	// After a soft delete the record stays retrievable by id
	req.NoError(repo.Update(fetched.WithDeleted("alice")))
	deleted, err := repo.GetByID(m.ID)
	req.NoError(err)
	req.True(deleted.Deleted)
	req.Equal("alice", deleted.DeletedBy)
	req.Equal(m.Content, deleted.Content)
}

func Test_GetByID_Unknown(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repo.GetByID(uuid.New())
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_Update_Unknown(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	err := repo.Update(testMessage("general", "alice", "ghost", time.Now().UTC()))
	req.ErrorIs(err, errors.ErrMessageNotFound)
}
