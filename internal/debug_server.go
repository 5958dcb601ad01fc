package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Room      string
	Timestamp string
	MessageID string
	Sender    string
	Content   string
	Flags     string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes a read-only HTML view over the Badger store for
// local debugging. It is only started when a debug port is configured.
func StartDebugServer(db *badger.DB, port int, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// DefaultMapper understands the message key layout msg:{room}:{nanos}:{id}
// and renders anything else as a raw row.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Room:      "-",
		Timestamp: "--:--:--",
		MessageID: "--------",
		Sender:    "-",
		Content:   "Size: " + strconv.Itoa(len(val)) + " bytes",
		Flags:     "-",
	}
	if len(parts) < 4 || parts[0] != "msg" {
		return row
	}

	row.Room = parts[1]
	if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
		row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
	}
	row.MessageID = parts[3]
	if len(row.MessageID) > 8 {
		row.MessageID = row.MessageID[:8]
	}

	var m struct {
		SenderID string `json:"sender_id"`
		Content  string `json:"content"`
		Deleted  bool   `json:"deleted"`
		Edited   bool   `json:"edited"`
	}
	if err := json.Unmarshal(val, &m); err != nil {
		return row
	}
	row.Sender = m.SenderID
	row.Content = m.Content
	var flags []string
	if m.Deleted {
		flags = append(flags, "deleted")
	}
	if m.Edited {
		flags = append(flags, "edited")
	}
	if len(flags) > 0 {
		row.Flags = strings.Join(flags, ",")
	}
	return row
}
