// Package search maintains a full-text index of message content and serves
// room-scoped queries against it. The index is a projection fed by the
// dispatcher; the Badger store stays the source of truth.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"chat-relay/domain"
)

type Hit struct {
	MessageID uuid.UUID
	Room      domain.RoomID
	SenderID  string
	Content   string
}

type Index struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

func NewIndex(writer *bluge.Writer, log *slog.Logger, pageSize int) *Index {
	return &Index{writer: writer, log: log, pageSize: pageSize}
}

// IndexMessage upserts one message document. Called again after an edit to
// replace the indexed content.
func (i *Index) IndexMessage(m domain.Message) error {
	doc := bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewKeywordField("room", string(m.Room)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", m.SenderID).StoreValue()).
		AddField(bluge.NewTextField("content", m.Content).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Remove drops a message from the index after a soft delete; the durable
// record survives, only searchability goes.
func (i *Index) Remove(id uuid.UUID) error {
	return i.writer.Delete(bluge.Identifier(id.String()))
}

// Search runs a room-scoped match query over message content, one page of
// results at a time.
func (i *Index) Search(ctx context.Context, room domain.RoomID, terms string,
	page int) ([]Hit, uint64, error) {
	terms = strings.TrimSpace(terms)
	if terms == "" {
		return nil, 0, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(room)).SetField("room"))

	request := bluge.NewTopNSearch(i.pageSize, query).
		SetFrom(page * i.pageSize).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit Hit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "room":
				hit.Room = domain.RoomID(value)
			case "sender":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	return hits, iterator.Aggregations().Count(), nil
}
