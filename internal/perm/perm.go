// Package perm answers permission questions about chats and members. It is a
// read-only layer: mutations enforce their own guards at the store, and this
// package exists so handlers can return a clean denial before attempting one.
package perm

import (
	"context"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

// reader is the slice of the data store the evaluator needs.
type reader interface {
	IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error)
	GetParticipant(ctx context.Context, chatID, userID string) (store.Participant, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetChat(ctx context.Context, chatID string) (store.Chat, error)
	ListBlockedUsers(ctx context.Context, userID string) ([]string, error)
}

type Evaluator struct {
	store reader
}

func NewEvaluator(store reader) *Evaluator {
	return &Evaluator{store: store}
}

// IsAdmin reports whether the user holds an admin row for the chat. Lookup
// failures read as false; a permission check never grants on error.
func (e *Evaluator) IsAdmin(ctx context.Context, chatID, userID string) bool {
	isAdmin, err := e.store.IsChatAdmin(ctx, chatID, userID)
	if err != nil {
		return false
	}
	return isAdmin
}

// IsActiveMember reports whether the user is a current participant of the chat.
func (e *Evaluator) IsActiveMember(ctx context.Context, chatID, userID string) bool {
	p, err := e.store.GetParticipant(ctx, chatID, userID)
	if err != nil {
		return false
	}
	return p.IsActive
}

// CanSend combines every send precondition: active chat, active membership,
// the per-chat can_send flag, and the account-level mute.
func (e *Evaluator) CanSend(ctx context.Context, chatID, userID string) bool {
	chat, err := e.store.GetChat(ctx, chatID)
	if err != nil || !chat.IsActive {
		return false
	}
	p, err := e.store.GetParticipant(ctx, chatID, userID)
	if err != nil || !p.IsActive || !p.CanSend {
		return false
	}
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return false
	}
	return user.CanSendMessages
}

// IsBlocked reports whether the viewer has blocked the author. One-directional:
// only the viewer's block list is consulted.
func (e *Evaluator) IsBlocked(ctx context.Context, viewerID, authorID string) bool {
	_, blocked := e.BlockedSet(ctx, viewerID)[authorID]
	return blocked
}

// BlockedSet returns the ids the viewer has blocked, for filtering message
// lists. An empty set on error fails open: a transient store fault should not
// hide the whole conversation, and the next fetch recomputes.
func (e *Evaluator) BlockedSet(ctx context.Context, viewerID string) map[string]struct{} {
	ids, err := e.store.ListBlockedUsers(ctx, viewerID)
	if err != nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// MayInvite reports whether the user can add members to the chat: admins
// always, ordinary members only when the chat allows member invites.
func (e *Evaluator) MayInvite(ctx context.Context, chatID, userID string) bool {
	if e.IsAdmin(ctx, chatID, userID) {
		return true
	}
	chat, err := e.store.GetChat(ctx, chatID)
	if err != nil || !chat.AllowMemberInvites {
		return false
	}
	return e.IsActiveMember(ctx, chatID, userID)
}
