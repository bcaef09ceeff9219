package app

import (
	"context"
	"strings"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/util"
)

const maxMessageBody = 8192

// SendMessage persists and fans out a message. The store checks every send
// precondition inside the insert itself; a false return here means the sender
// lost the right to post between their last fetch and now.
func (s *Service) SendMessage(ctx context.Context, actorID, chatID string, input SendMessageInput) (MessageView, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" && input.AttachmentURL == "" {
		return MessageView{}, validationError("message body is required", nil)
	}
	if len(body) > maxMessageBody {
		return MessageView{}, validationError("message body too long", map[string]int{"max": maxMessageBody})
	}

	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return MessageView{}, err
	}
	if !s.perm.CanSend(ctx, chatID, actorID) {
		return MessageView{}, permissionDenied("You cannot send messages in this chat")
	}

	msg := store.Message{
		ID:            util.NewID("msg"),
		ChatID:        chatID,
		SenderID:      actorID,
		Body:          body,
		AttachmentURL: input.AttachmentURL,
	}
	inserted, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return MessageView{}, err
	}
	if !inserted {
		return MessageView{}, conflict("Message could not be sent")
	}

	stored, err := s.store.GetMessage(ctx, msg.ID)
	if err == nil {
		msg = stored
	}
	if s.indexer != nil {
		_ = s.indexer.IndexMessage(ctx, msg)
	}
	if s.events != nil {
		_ = s.events.PublishMessage(ctx, msg)
	}
	return MessageView{
		ID:            msg.ID,
		ChatID:        msg.ChatID,
		SenderID:      msg.SenderID,
		Body:          msg.Body,
		AttachmentURL: msg.AttachmentURL,
		SentAt:        msg.SentAt,
	}, nil
}

// ListMessages returns the chat's messages as the viewer is allowed to see
// them. The filter runs on every fetch, so a block, hide, or delete applied
// since the last fetch takes effect immediately:
//
//  1. deleted messages are gone for everyone, admins included
//  2. admin-hidden messages are gone for everyone except chat admins, who see
//     them with the hidden annotation
//  3. messages from senders the viewer has blocked are gone for the viewer
func (s *Service) ListMessages(ctx context.Context, actorID, chatID string, limit int) ([]MessageView, error) {
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	if !s.perm.IsActiveMember(ctx, chatID, actorID) {
		return nil, notFound("Chat not found")
	}

	messages, err := s.store.ListMessages(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	return s.filterVisible(ctx, actorID, chatID, messages), nil
}

// FilterVisible applies the viewer's visibility rules to an arbitrary batch
// of messages from one chat, e.g. search results. The viewer must be an
// active member.
func (s *Service) FilterVisible(ctx context.Context, actorID, chatID string, messages []store.Message) ([]MessageView, error) {
	if !s.perm.IsActiveMember(ctx, chatID, actorID) {
		return nil, notFound("Chat not found")
	}
	return s.filterVisible(ctx, actorID, chatID, messages), nil
}

func (s *Service) filterVisible(ctx context.Context, actorID, chatID string, messages []store.Message) []MessageView {
	viewerIsAdmin := s.perm.IsAdmin(ctx, chatID, actorID)
	blocked := s.perm.BlockedSet(ctx, actorID)

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		if msg.IsDeleted {
			continue
		}
		if msg.IsHiddenByAdmin && !viewerIsAdmin {
			continue
		}
		if _, isBlocked := blocked[msg.SenderID]; isBlocked && msg.SenderID != actorID {
			continue
		}
		views = append(views, MessageView{
			ID:            msg.ID,
			ChatID:        msg.ChatID,
			SenderID:      msg.SenderID,
			Body:          msg.Body,
			AttachmentURL: msg.AttachmentURL,
			SentAt:        msg.SentAt,
			HiddenByAdmin: msg.IsHiddenByAdmin,
		})
	}
	return views
}

// DeleteOwnMessage soft-deletes a message the actor sent. The row survives
// for reports and admin review; it just stops rendering for everyone.
func (s *Service) DeleteOwnMessage(ctx context.Context, actorID, messageID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		return permissionDenied("Only the sender can delete a message")
	}
	if msg.IsDeleted {
		return nil
	}

	changed, err := s.store.SoftDeleteMessage(ctx, messageID, actorID)
	if err != nil {
		return err
	}
	if !changed {
		return conflict("Message could not be deleted")
	}
	if s.indexer != nil {
		_ = s.indexer.RemoveMessage(ctx, messageID)
	}
	s.publishChatEvent(ctx, msg.ChatID, "message.deleted", map[string]string{"messageId": messageID})
	return nil
}
