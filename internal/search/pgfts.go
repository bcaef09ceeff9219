package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

// PgFTS searches messages with PostgreSQL full-text search. It runs against
// the primary store, so results always reflect current moderation state.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search ranks one chat's messages against the query. Deleted messages are
// excluded here; the caller applies the rest of the visibility rules.
func (p *PgFTS) Search(ctx context.Context, chatID, query string, limit int) ([]store.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, body, attachment_url, sent_at, is_deleted, is_hidden_by_admin
		FROM messages
		WHERE chat_id = $1
		  AND NOT is_deleted
		  AND to_tsvector('english', body) @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(to_tsvector('english', body), plainto_tsquery('english', $2)) DESC
		LIMIT $3
	`, chatID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	items := make([]store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Body, &msg.AttachmentURL, &msg.SentAt, &msg.IsDeleted, &msg.IsHiddenByAdmin); err != nil {
			return nil, fmt.Errorf("pgfts scan: %w", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgfts iterate: %w", err)
	}
	return items, nil
}

// LoadAllRecords reads every live message for reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MessageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, body, sent_at
		FROM messages
		WHERE NOT is_deleted AND NOT is_hidden_by_admin
	`)
	if err != nil {
		return nil, fmt.Errorf("load message records: %w", err)
	}
	defer rows.Close()

	records := make([]MessageRecord, 0)
	for rows.Next() {
		var record MessageRecord
		var sentAt sql.NullTime
		if err := rows.Scan(&record.ID, &record.ChatID, &record.SenderID, &record.Body, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message record: %w", err)
		}
		if sentAt.Valid {
			record.SentAt = sentAt.Time.Unix()
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message records: %w", err)
	}
	return records, nil
}
