// Command viewer dumps a room's recent messages from a live store as a
// terminal table. It opens Badger read-only and bypasses the lock guard so
// it can run next to the server process.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
	"chat-relay/repositories"
)

type config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	Room           string `envconfig:"VIEWER_ROOM" default:"general"`
	Page           int    `envconfig:"VIEWER_PAGE" default:"0"`
	Size           int    `envconfig:"VIEWER_SIZE" default:"50"`
	ShowDeleted    bool   `envconfig:"VIEWER_SHOW_DELETED" default:"true"`
}

func main() {
	_ = godotenv.Load()
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(cfg.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := repositories.NewMessageRepository(db, slog.Default())
	messages, err := repo.Page(domain.RoomID(cfg.Room), repositories.PageQuery{
		Page:           cfg.Page,
		Size:           cfg.Size,
		IncludeDeleted: cfg.ShowDeleted,
	})
	if err != nil {
		log.Fatalf("Failed to read messages: %v", err)
	}

	color.Bold.Printf("Room %q, page %d (%d messages)\n", cfg.Room, cfg.Page, len(messages))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Sender", "Content", "State"})
	table.SetAutoWrapText(false)

	for _, m := range messages {
		state := "-"
		content := m.Content
		switch {
		case m.Deleted:
			state = color.Red.Sprintf("deleted by %s", m.DeletedBy)
			content = color.Gray.Sprint(content)
		case m.Edited:
			state = color.Yellow.Sprint("edited")
		}
		table.Append([]string{
			m.CreatedAt.Format(time.TimeOnly),
			fmt.Sprintf("%s (%s)", m.SenderName, m.SenderID),
			content,
			state,
		})
	}
	table.Render()
}
