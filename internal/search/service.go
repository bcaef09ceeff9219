package search

import (
	"context"
	"log"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

type messageGetter interface {
	GetMessage(ctx context.Context, messageID string) (store.Message, error)
}

// Service tries Meilisearch first and falls back to PG FTS. Meilisearch hits
// are ids only; the live rows are re-read from the store so moderation state
// is always current.
type Service struct {
	meili *Meili
	pgfts *PgFTS
	store messageGetter
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS, messageStore messageGetter) *Service {
	return &Service{meili: meili, pgfts: pgfts, store: messageStore}
}

func (s *Service) SearchMessages(ctx context.Context, chatID, query string, limit int) ([]store.Message, error) {
	if s.meili != nil && s.meili.Healthy() {
		ids, err := s.meili.Search(chatID, query, limit)
		if err == nil {
			return s.resolve(ctx, chatID, ids), nil
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}
	return s.pgfts.Search(ctx, chatID, query, limit)
}

func (s *Service) resolve(ctx context.Context, chatID string, ids []string) []store.Message {
	items := make([]store.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.store.GetMessage(ctx, id)
		if err != nil {
			// Deleted from the store but still indexed; skip.
			continue
		}
		if msg.ChatID != chatID {
			continue
		}
		items = append(items, msg)
	}
	return items
}

// IndexMessage pushes a message into Meilisearch, fire-and-forget.
func (s *Service) IndexMessage(ctx context.Context, msg store.Message) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.IndexMessage(msg); err != nil {
			log.Printf("search: index message %s: %v", msg.ID, err)
		}
	}()
	return nil
}

// RemoveMessage drops a message from Meilisearch, fire-and-forget.
func (s *Service) RemoveMessage(ctx context.Context, messageID string) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	go func() {
		if err := s.meili.RemoveMessage(messageID); err != nil {
			log.Printf("search: remove message %s: %v", messageID, err)
		}
	}()
	return nil
}

// ReindexAllFromPG reloads every live message from postgres into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexMessages(records); err != nil {
		log.Printf("search: reindex failed: %v", err)
	}
}
