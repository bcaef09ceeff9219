package app

import (
	"context"
	"strings"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

// SetMemberSendPermission mutes or unmutes a member within one chat. The
// store re-checks the actor's admin standing inside the update, so the
// pre-check here only shapes the error.
func (s *Service) SetMemberSendPermission(ctx context.Context, actorID, chatID, targetID string, input SetSendPermissionInput) error {
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return err
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can change send permissions")
	}
	if _, err := s.store.GetParticipant(ctx, chatID, targetID); err != nil {
		return err
	}

	changed, err := s.store.SetParticipantCanSend(ctx, chatID, actorID, targetID, input.CanSend)
	if err != nil {
		return err
	}
	if !changed {
		// Already in the requested state, or the actor was demoted between
		// the pre-check and the update.
		current, err := s.store.GetParticipant(ctx, chatID, targetID)
		if err == nil && current.IsActive && current.CanSend == input.CanSend {
			return nil
		}
		return conflict("Send permission could not be changed")
	}
	s.publishChatEvent(ctx, chatID, "member.send_permission", map[string]any{
		"userId":  targetID,
		"canSend": input.CanSend,
	})
	return nil
}

// RemoveParticipant removes another member from the chat. Members leaving on
// their own behalf go through LeaveChat instead.
func (s *Service) RemoveParticipant(ctx context.Context, actorID, chatID, targetID string) error {
	if targetID == actorID {
		return s.LeaveChat(ctx, actorID, chatID)
	}
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return err
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can remove members")
	}
	if _, err := s.store.GetParticipant(ctx, chatID, targetID); err != nil {
		return err
	}

	changed, err := s.store.DeactivateParticipantAsAdmin(ctx, chatID, actorID, targetID)
	if err != nil {
		return err
	}
	if !changed {
		return conflict("Member could not be removed")
	}
	s.publishChatEvent(ctx, chatID, "member.removed", map[string]string{"userId": targetID})
	return nil
}

// AssignChatAdmin grants chat admin to a member. The first grant in a chat
// may be the creator self-assigning; after that only existing admins can
// assign. The store enforces both arms atomically.
func (s *Service) AssignChatAdmin(ctx context.Context, actorID, chatID, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return validationError("userId is required", nil)
	}

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Kind == store.ChatKindIndividual {
		return validationError("individual chats have no admins", nil)
	}

	participant, err := s.store.GetParticipant(ctx, chatID, targetID)
	if err != nil {
		return err
	}
	if !participant.IsActive {
		return validationError("user is not an active member of this chat", nil)
	}

	bootstrap := actorID == chat.CreatedBy && actorID == targetID
	if !bootstrap && !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can assign admins")
	}

	changed, err := s.store.InsertChatAdmin(ctx, chatID, targetID, actorID)
	if err != nil {
		return err
	}
	if !changed {
		if isAdmin, err := s.store.IsChatAdmin(ctx, chatID, targetID); err == nil && isAdmin {
			return nil
		}
		return conflict("Admin could not be assigned")
	}
	s.publishChatEvent(ctx, chatID, "admin.assigned", map[string]string{"userId": targetID})
	return nil
}

func (s *Service) RemoveChatAdmin(ctx context.Context, actorID, chatID, targetID string) error {
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return err
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can remove admins")
	}

	changed, err := s.store.DeleteChatAdmin(ctx, chatID, actorID, targetID)
	if err != nil {
		return err
	}
	if !changed {
		return notFound("User is not an admin of this chat")
	}
	s.publishChatEvent(ctx, chatID, "admin.removed", map[string]string{"userId": targetID})
	return nil
}

func (s *Service) ListChatAdmins(ctx context.Context, actorID, chatID string) ([]store.ChatAdmin, error) {
	if !s.perm.IsActiveMember(ctx, chatID, actorID) {
		return nil, notFound("Chat not found")
	}
	return s.store.ListChatAdmins(ctx, chatID)
}

// HideMessage marks a message hidden by an admin of its chat. The message
// stays in the store and remains visible, annotated, to chat admins.
func (s *Service) HideMessage(ctx context.Context, actorID, messageID string) error {
	return s.setMessageHidden(ctx, actorID, messageID, true)
}

func (s *Service) UnhideMessage(ctx context.Context, actorID, messageID string) error {
	return s.setMessageHidden(ctx, actorID, messageID, false)
}

func (s *Service) setMessageHidden(ctx context.Context, actorID, messageID string, hidden bool) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !s.perm.IsAdmin(ctx, msg.ChatID, actorID) {
		return permissionDenied("Only chat admins can hide messages")
	}
	if msg.IsHiddenByAdmin == hidden {
		return nil
	}

	changed, err := s.store.SetMessageHidden(ctx, messageID, actorID, hidden)
	if err != nil {
		return err
	}
	if !changed {
		return conflict("Message visibility could not be changed")
	}
	if s.indexer != nil && hidden {
		_ = s.indexer.RemoveMessage(ctx, messageID)
	}
	if s.indexer != nil && !hidden {
		_ = s.indexer.IndexMessage(ctx, msg)
	}
	s.publishChatEvent(ctx, msg.ChatID, "message.visibility", map[string]any{
		"messageId": messageID,
		"hidden":    hidden,
	})
	return nil
}

// BlockUser hides the target's messages from the actor in every chat. The
// block is personal; nothing changes for other viewers or for the target.
func (s *Service) BlockUser(ctx context.Context, actorID, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return validationError("userId is required", nil)
	}
	if targetID == actorID {
		return validationError("cannot block yourself", nil)
	}
	if _, err := s.store.GetUserByID(ctx, targetID); err != nil {
		return err
	}
	return s.store.BlockUser(ctx, actorID, targetID)
}

func (s *Service) UnblockUser(ctx context.Context, actorID, targetID string) error {
	return s.store.UnblockUser(ctx, actorID, targetID)
}

func (s *Service) ListBlockedUsers(ctx context.Context, actorID string) ([]string, error) {
	return s.store.ListBlockedUsers(ctx, actorID)
}
