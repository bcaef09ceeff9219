package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrIndividualChatFull is returned when a third participant would be added
// to an individual chat. Individual chats are fixed at two members.
var ErrIndividualChatFull = errors.New("individual chat already has two participants")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, can_send_messages)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.CanSendMessages)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, can_send_messages, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CanSendMessages, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, can_send_messages, created_at
		FROM users
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CanSendMessages, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SetUserSendFlag(ctx context.Context, userID string, canSend bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET can_send_messages=$2, updated_at=NOW() WHERE id=$1
	`, userID, canSend)
	if err != nil {
		return fmt.Errorf("set user send flag: %w", err)
	}
	return nil
}

// --- refresh sessions (postgres fallback when redis is not configured) ---

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.can_send_messages
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.CanSendMessages)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// --- chats ---

const chatColumns = `id, name, kind, created_by, is_active, allow_member_invites, created_at`

func scanChat(row *sql.Row) (Chat, error) {
	var chat Chat
	err := row.Scan(&chat.ID, &chat.Name, &chat.Kind, &chat.CreatedBy, &chat.IsActive, &chat.AllowMemberInvites, &chat.CreatedAt)
	return chat, err
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (Chat, error) {
	return scanChat(s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID))
}

// FindIndividualChat locates the one-to-one chat shared by the pair, in
// either order. Inactive participant rows match too: a pair always resolves
// to their original chat, which a repeated create reactivates rather than
// shadowing with a duplicate.
func (s *PostgresStore) FindIndividualChat(ctx context.Context, userA, userB string) (*Chat, error) {
	const query = `
		SELECT c.id, c.name, c.kind, c.created_by, c.is_active, c.allow_member_invites, c.created_at
		FROM chats c
		JOIN participants pa ON pa.chat_id = c.id AND pa.user_id = $1
		JOIN participants pb ON pb.chat_id = c.id AND pb.user_id = $2
		WHERE c.kind = 'individual' AND c.is_active
		ORDER BY c.created_at ASC
		LIMIT 1
	`
	var chat Chat
	err := s.db.QueryRowContext(ctx, query, userA, userB).Scan(
		&chat.ID, &chat.Name, &chat.Kind, &chat.CreatedBy, &chat.IsActive, &chat.AllowMemberInvites, &chat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find individual chat: %w", err)
	}
	return &chat, nil
}

// ReactivateIndividualChat restores both participant rows of a one-to-one
// chat, so a pair that split up can pick the conversation back up through the
// ordinary create path. No-op for other chat kinds.
func (s *PostgresStore) ReactivateIndividualChat(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants p
		SET is_active = TRUE, can_send = TRUE
		FROM chats c
		WHERE c.id = p.chat_id
		  AND p.chat_id = $1
		  AND c.kind = 'individual'
		  AND c.is_active
		  AND (NOT p.is_active OR NOT p.can_send)
	`, chatID)
	if err != nil {
		return fmt.Errorf("reactivate individual chat: %w", err)
	}
	return nil
}

// InsertChatWithParticipants creates the chat and all participant rows in one
// transaction so a failed member insert never leaves a memberless chat.
// seedAdmin additionally records the creator as the chat's first admin.
func (s *PostgresStore) InsertChatWithParticipants(ctx context.Context, chat Chat, members []Participant, seedAdmin bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chat tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id, name, kind, created_by, is_active, allow_member_invites)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`, chat.ID, chat.Name, chat.Kind, chat.CreatedBy, chat.AllowMemberInvites); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	for _, member := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (chat_id, user_id, can_send, is_active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (chat_id, user_id) DO UPDATE SET is_active=TRUE, can_send=EXCLUDED.can_send
		`, chat.ID, member.UserID, member.CanSend); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if seedAdmin {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_admins (chat_id, user_id, assigned_by)
			VALUES ($1, $2, $2)
			ON CONFLICT (chat_id, user_id) DO NOTHING
		`, chat.ID, chat.CreatedBy); err != nil {
			return fmt.Errorf("seed chat admin: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUserChats(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.kind, c.created_by, c.is_active, c.allow_member_invites, c.created_at
		FROM chats c
		JOIN participants p ON p.chat_id = c.id
		WHERE p.user_id = $1 AND p.is_active AND c.is_active
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user chats: %w", err)
	}
	defer rows.Close()

	items := make([]Chat, 0)
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Name, &chat.Kind, &chat.CreatedBy, &chat.IsActive, &chat.AllowMemberInvites, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		items = append(items, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return items, nil
}

// RenameChat succeeds only for group chats and only when the actor holds an
// admin row at the moment of the update.
func (s *PostgresStore) RenameChat(ctx context.Context, chatID, actorID, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chats
		SET name=$3, updated_at=NOW()
		WHERE id=$1 AND kind='group' AND is_active
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, actorID, name)
	if err != nil {
		return false, fmt.Errorf("rename chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rename chat rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetChatInvitePolicy(ctx context.Context, chatID, actorID string, allow bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chats
		SET allow_member_invites=$3, updated_at=NOW()
		WHERE id=$1 AND is_active
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, actorID, allow)
	if err != nil {
		return false, fmt.Errorf("set chat invite policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set chat invite policy rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeactivateChat(ctx context.Context, chatID, actorID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chats
		SET is_active=FALSE, updated_at=NOW()
		WHERE id=$1 AND is_active
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, actorID)
	if err != nil {
		return false, fmt.Errorf("deactivate chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate chat rows: %w", err)
	}
	return affected > 0, nil
}

// --- participants ---

func (s *PostgresStore) GetParticipant(ctx context.Context, chatID, userID string) (Participant, error) {
	var p Participant
	err := s.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, can_send, is_active, joined_at
		FROM participants
		WHERE chat_id=$1 AND user_id=$2
	`, chatID, userID).Scan(&p.ChatID, &p.UserID, &p.CanSend, &p.IsActive, &p.JoinedAt)
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, chatID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, user_id, can_send, is_active, joined_at
		FROM participants
		WHERE chat_id=$1 AND is_active
		ORDER BY joined_at ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	items := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ChatID, &p.UserID, &p.CanSend, &p.IsActive, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return items, nil
}

// AddParticipant reactivates a previously removed member instead of creating
// a second row. The chat row is locked for the duration of the transaction so
// the two-member cap on individual chats cannot be raced past.
func (s *PostgresStore) AddParticipant(ctx context.Context, chatID, userID string, canSend bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add participant tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var kind string
	err = tx.QueryRowContext(ctx, `SELECT kind FROM chats WHERE id=$1 AND is_active FOR UPDATE`, chatID).Scan(&kind)
	if err != nil {
		return err
	}

	if kind == ChatKindIndividual {
		var activeCount int
		var alreadyMember bool
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FILTER (WHERE is_active),
			       COUNT(*) FILTER (WHERE user_id=$2) > 0
			FROM participants WHERE chat_id=$1
		`, chatID, userID).Scan(&activeCount, &alreadyMember)
		if err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if activeCount >= 2 && !alreadyMember {
			return ErrIndividualChatFull
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO participants (chat_id, user_id, can_send, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (chat_id, user_id) DO UPDATE SET is_active=TRUE, can_send=EXCLUDED.can_send
	`, chatID, userID, canSend); err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add participant tx: %w", err)
	}
	return nil
}

// DeactivateParticipant marks the member inactive without an authorization
// guard; callers use it for a member leaving on their own behalf.
func (s *PostgresStore) DeactivateParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE participants
		SET is_active=FALSE
		WHERE chat_id=$1 AND user_id=$2 AND is_active
	`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate participant rows: %w", err)
	}
	return affected > 0, nil
}

// DeactivateParticipantAsAdmin re-validates the actor's admin row inside the
// same statement as the removal, so an admin demoted mid-flight cannot
// complete the action.
func (s *PostgresStore) DeactivateParticipantAsAdmin(ctx context.Context, chatID, actorID, targetID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE participants
		SET is_active=FALSE
		WHERE chat_id=$1 AND user_id=$3 AND is_active
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, actorID, targetID)
	if err != nil {
		return false, fmt.Errorf("remove participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove participant rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetParticipantCanSend(ctx context.Context, chatID, actorID, targetID string, canSend bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE participants
		SET can_send=$4
		WHERE chat_id=$1 AND user_id=$3 AND is_active
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, actorID, targetID, canSend)
	if err != nil {
		return false, fmt.Errorf("set participant can_send: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set participant can_send rows: %w", err)
	}
	return affected > 0, nil
}

// --- chat admins ---

func (s *PostgresStore) IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, userID).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("check chat admin: %w", err)
	}
	return isAdmin, nil
}

func (s *PostgresStore) ListChatAdmins(ctx context.Context, chatID string) ([]ChatAdmin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, user_id, assigned_by, assigned_at
		FROM chat_admins
		WHERE chat_id=$1
		ORDER BY assigned_at ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat admins: %w", err)
	}
	defer rows.Close()

	items := make([]ChatAdmin, 0)
	for rows.Next() {
		var admin ChatAdmin
		if err := rows.Scan(&admin.ChatID, &admin.UserID, &admin.AssignedBy, &admin.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan chat admin: %w", err)
		}
		items = append(items, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat admins: %w", err)
	}
	return items, nil
}

// InsertChatAdmin grants admin when the assigner is already an admin, or —
// the bootstrap case — when the chat's creator self-assigns the first admin
// row. The predicate runs in the INSERT itself.
func (s *PostgresStore) InsertChatAdmin(ctx context.Context, chatID, targetID, assignedBy string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_admins (chat_id, user_id, assigned_by)
		SELECT $1, $2, $3
		WHERE EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$3)
		   OR ($2 = $3
		       AND EXISTS (SELECT 1 FROM chats WHERE id=$1 AND created_by=$3)
		       AND NOT EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1))
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`, chatID, targetID, assignedBy)
	if err != nil {
		return false, fmt.Errorf("insert chat admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert chat admin rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteChatAdmin(ctx context.Context, chatID, actorID, targetID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_admins
		WHERE chat_id=$1 AND user_id=$3
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=$1 AND user_id=$2)
	`, chatID, actorID, targetID)
	if err != nil {
		return false, fmt.Errorf("delete chat admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete chat admin rows: %w", err)
	}
	return affected > 0, nil
}

// --- messages ---

// InsertMessage persists the message only while the sender is an active
// participant with send rights and an unmuted profile. The permission check
// and the insert are one statement.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg Message) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, body, attachment_url)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (
			SELECT 1
			FROM participants p
			JOIN users u ON u.id = p.user_id
			JOIN chats c ON c.id = p.chat_id
			WHERE p.chat_id=$2 AND p.user_id=$3
			  AND p.is_active AND p.can_send
			  AND u.can_send_messages AND c.is_active
		)
	`, msg.ID, msg.ChatID, msg.SenderID, msg.Body, msg.AttachmentURL)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (Message, error) {
	var msg Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, sender_id, body, attachment_url, sent_at, is_deleted, is_hidden_by_admin
		FROM messages
		WHERE id=$1
	`, messageID).Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Body, &msg.AttachmentURL, &msg.SentAt, &msg.IsDeleted, &msg.IsHiddenByAdmin)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, body, attachment_url, sent_at, is_deleted, is_hidden_by_admin
		FROM messages
		WHERE chat_id=$1
		ORDER BY sent_at ASC
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Body, &msg.AttachmentURL, &msg.SentAt, &msg.IsDeleted, &msg.IsHiddenByAdmin); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

// SetMessageHidden requires the actor to be an admin of the message's chat at
// the moment of the update.
func (s *PostgresStore) SetMessageHidden(ctx context.Context, messageID, actorID string, hidden bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages m
		SET is_hidden_by_admin=$3
		WHERE m.id=$1 AND m.is_hidden_by_admin <> $3
		  AND EXISTS (SELECT 1 FROM chat_admins WHERE chat_id=m.chat_id AND user_id=$2)
	`, messageID, actorID, hidden)
	if err != nil {
		return false, fmt.Errorf("set message hidden: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set message hidden rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SoftDeleteMessage(ctx context.Context, messageID, senderID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_deleted=TRUE
		WHERE id=$1 AND sender_id=$2 AND NOT is_deleted
	`, messageID, senderID)
	if err != nil {
		return false, fmt.Errorf("soft delete message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete message rows: %w", err)
	}
	return affected > 0, nil
}

// --- blocks ---

func (s *PostgresStore) BlockUser(ctx context.Context, userID, targetID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocked_users (user_id, blocked_user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, blocked_user_id) DO NOTHING
	`, userID, targetID)
	if err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnblockUser(ctx context.Context, userID, targetID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM blocked_users WHERE user_id=$1 AND blocked_user_id=$2
	`, userID, targetID)
	if err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBlockedUsers(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT blocked_user_id FROM blocked_users WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blocked user: %w", err)
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked users: %w", err)
	}
	return items, nil
}

// --- reports ---

func (s *PostgresStore) InsertReport(ctx context.Context, report Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, chat_id, message_id, target_user_id, reason, contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ID, report.ReporterID, report.ChatID, report.MessageID, report.TargetUserID, report.Reason, report.Contact)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChatReports(ctx context.Context, chatID string) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reporter_id, chat_id, message_id, target_user_id, reason, contact, created_at
		FROM reports
		WHERE chat_id=$1
		ORDER BY created_at ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat reports: %w", err)
	}
	defer rows.Close()

	items := make([]Report, 0)
	for rows.Next() {
		var report Report
		if err := rows.Scan(&report.ID, &report.ReporterID, &report.ChatID, &report.MessageID, &report.TargetUserID, &report.Reason, &report.Contact, &report.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return items, nil
}
