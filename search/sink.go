package search

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

var _ contract.EventSink = (*IndexSink)(nil)

// IndexSink keeps the search index in step with the event stream: posts are
// indexed, edits reindexed, deletions dropped.
type IndexSink struct {
	index *Index
	log   *slog.Logger
}

func NewIndexSink(index *Index, log *slog.Logger) *IndexSink {
	return &IndexSink{index: index, log: log}
}

func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return s.index.IndexMessage(domain.Message{
			ID:       evt.ID,
			Room:     evt.Room,
			SenderID: evt.SenderID,
			Content:  evt.Content,
		})
	case event.MessageEdited:
		return s.index.IndexMessage(domain.Message{
			ID:       evt.ID,
			Room:     evt.Room,
			SenderID: evt.SenderID,
			Content:  evt.Content,
		})
	case event.MessageDeleted:
		return s.index.Remove(evt.ID)
	default:
		s.log.Debug(fmt.Sprintf("Not an indexable event : %v", evt))
		return nil
	}
}
