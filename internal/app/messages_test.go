package app

import (
	"context"
	"strings"
	"testing"
)

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestService("alice", "bob")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	_, err := svc.SendMessage(ctx, "alice", chat.ID, SendMessageInput{Body: "   "})
	expectDomainError(t, err, "VALIDATION_ERROR")

	_, err = svc.SendMessage(ctx, "alice", chat.ID, SendMessageInput{Body: strings.Repeat("x", maxMessageBody+1)})
	expectDomainError(t, err, "VALIDATION_ERROR")

	// Attachment-only messages are allowed.
	if _, err := svc.SendMessage(ctx, "alice", chat.ID, SendMessageInput{AttachmentURL: "https://cdn/img.png"}); err != nil {
		t.Fatalf("attachment-only send failed: %v", err)
	}
}

func TestSendMessageRequiresMembership(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "mallory")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	_, err := svc.SendMessage(ctx, "mallory", chat.ID, SendMessageInput{Body: "hi"})
	expectDomainError(t, err, "PERMISSION_DENIED")
}

func TestSendMessageBlockedByAccountMute(t *testing.T) {
	svc, mem := newTestService("alice", "bob")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	if err := mem.SetUserSendFlag(ctx, "bob", false); err != nil {
		t.Fatalf("SetUserSendFlag failed: %v", err)
	}
	_, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "hi"})
	expectDomainError(t, err, "PERMISSION_DENIED")
}

// The core visibility scenario: one normal message, one sender-deleted, one
// admin-hidden. A plain member sees only the normal one; a chat admin also
// sees the hidden one, annotated; nobody sees the deleted one.
func TestListMessagesVisibility(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "carol")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob", "carol")

	normal, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "normal"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	deleted, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "deleted"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	hidden, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "hidden"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if err := svc.DeleteOwnMessage(ctx, "bob", deleted.ID); err != nil {
		t.Fatalf("DeleteOwnMessage failed: %v", err)
	}
	if err := svc.HideMessage(ctx, "alice", hidden.ID); err != nil {
		t.Fatalf("HideMessage failed: %v", err)
	}

	memberView, err := svc.ListMessages(ctx, "carol", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(memberView) != 1 || memberView[0].ID != normal.ID {
		t.Fatalf("member should see only the normal message, got %+v", memberView)
	}

	adminView, err := svc.ListMessages(ctx, "alice", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(adminView) != 2 {
		t.Fatalf("admin should see normal + hidden, got %+v", adminView)
	}
	for _, msg := range adminView {
		switch msg.ID {
		case normal.ID:
			if msg.HiddenByAdmin {
				t.Error("normal message should not be annotated")
			}
		case hidden.ID:
			if !msg.HiddenByAdmin {
				t.Error("hidden message should carry the annotation for admins")
			}
		case deleted.ID:
			t.Error("deleted message should be gone for admins too")
		}
	}
}

func TestListMessagesFiltersBlockedSenders(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "carol")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob", "carol")

	fromBob, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "from bob"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	fromCarol, err := svc.SendMessage(ctx, "carol", chat.ID, SendMessageInput{Body: "from carol"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if err := svc.BlockUser(ctx, "alice", "bob"); err != nil {
		t.Fatalf("BlockUser failed: %v", err)
	}

	// The block is personal to alice.
	aliceView, err := svc.ListMessages(ctx, "alice", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(aliceView) != 1 || aliceView[0].ID != fromCarol.ID {
		t.Fatalf("alice should not see bob's messages, got %+v", aliceView)
	}

	carolView, err := svc.ListMessages(ctx, "carol", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(carolView) != 2 {
		t.Fatalf("carol's view should be unaffected, got %+v", carolView)
	}

	// Bob keeps seeing his own messages regardless of who blocked him.
	bobView, err := svc.ListMessages(ctx, "bob", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(bobView) != 2 || bobView[0].ID != fromBob.ID {
		t.Fatalf("bob should see both messages, got %+v", bobView)
	}
}

func TestListMessagesRequiresMembership(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "mallory")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	_, err := svc.ListMessages(ctx, "mallory", chat.ID, 0)
	expectDomainError(t, err, "NOT_FOUND")
}

func TestDeleteOwnMessage(t *testing.T) {
	svc, _ := newTestService("alice", "bob")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	msg, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "oops"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// Even a chat admin cannot delete someone else's message.
	err = svc.DeleteOwnMessage(ctx, "alice", msg.ID)
	expectDomainError(t, err, "PERMISSION_DENIED")

	if err := svc.DeleteOwnMessage(ctx, "bob", msg.ID); err != nil {
		t.Fatalf("DeleteOwnMessage failed: %v", err)
	}
	// Deleting twice is a no-op.
	if err := svc.DeleteOwnMessage(ctx, "bob", msg.ID); err != nil {
		t.Fatalf("repeat delete should be idempotent: %v", err)
	}

	views, err := svc.ListMessages(ctx, "alice", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("deleted message should not render, got %+v", views)
	}
}
