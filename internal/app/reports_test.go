package app

import (
	"context"
	"testing"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

func TestReportMessage(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "carol")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob", "carol")

	msg, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "rude"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	_, err = svc.ReportMessage(ctx, "carol", msg.ID, ReportInput{})
	expectDomainError(t, err, "VALIDATION_ERROR")

	report, err := svc.ReportMessage(ctx, "carol", msg.ID, ReportInput{Reason: "harassment", Contact: "carol@example.com"})
	if err != nil {
		t.Fatalf("ReportMessage failed: %v", err)
	}
	if report.MessageID == nil || *report.MessageID != msg.ID {
		t.Fatalf("report should reference the message, got %+v", report)
	}
	if report.ChatID != chat.ID || report.ReporterID != "carol" {
		t.Fatalf("unexpected report attribution: %+v", report)
	}

	// Reporting never alters the message itself.
	views, err := svc.ListMessages(ctx, "carol", chat.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("reported message should still render, got %+v", views)
	}
}

func TestReportMessageRequiresMembership(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "mallory")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	msg, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	_, err = svc.ReportMessage(ctx, "mallory", msg.ID, ReportInput{Reason: "spam"})
	expectDomainError(t, err, "NOT_FOUND")
}

func TestReportUser(t *testing.T) {
	svc, _ := newTestService("alice", "bob", "carol")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	_, err := svc.ReportUser(ctx, "bob", chat.ID, ReportInput{Reason: "abuse"})
	expectDomainError(t, err, "VALIDATION_ERROR")

	// The target must actually be in the chat.
	if _, err := svc.ReportUser(ctx, "bob", chat.ID, ReportInput{Reason: "abuse", TargetUserID: "carol"}); err == nil {
		t.Fatal("reporting a non-member should fail")
	}

	report, err := svc.ReportUser(ctx, "bob", chat.ID, ReportInput{Reason: "abuse", TargetUserID: "alice"})
	if err != nil {
		t.Fatalf("ReportUser failed: %v", err)
	}
	if report.TargetUserID == nil || *report.TargetUserID != "alice" {
		t.Fatalf("report should reference the target user, got %+v", report)
	}
}

func TestListChatReportsAdminOnly(t *testing.T) {
	svc, _ := newTestService("alice", "bob")
	ctx := context.Background()
	chat := seedGroupChat(t, svc, "alice", "bob")

	msg, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if _, err := svc.ReportMessage(ctx, "alice", msg.ID, ReportInput{Reason: "spam"}); err != nil {
		t.Fatalf("ReportMessage failed: %v", err)
	}

	_, err = svc.ListChatReports(ctx, "bob", chat.ID)
	expectDomainError(t, err, "PERMISSION_DENIED")

	reports, err := svc.ListChatReports(ctx, "alice", chat.ID)
	if err != nil {
		t.Fatalf("ListChatReports failed: %v", err)
	}
	if len(reports) != 1 || reports[0].Reason != "spam" {
		t.Fatalf("expected one spam report, got %+v", reports)
	}
}

type capturingNotifier struct {
	reports []store.Report
	chats   []store.Chat
}

func (c *capturingNotifier) NotifyReport(_ context.Context, report store.Report, chat store.Chat) error {
	c.reports = append(c.reports, report)
	c.chats = append(c.chats, chat)
	return nil
}

func TestReportNotifiesModeration(t *testing.T) {
	svc, _ := newTestService("alice", "bob")
	ctx := context.Background()
	notifier := &capturingNotifier{}
	svc.WithNotifier(notifier)

	chat := seedGroupChat(t, svc, "alice", "bob")
	msg, err := svc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Body: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	report, err := svc.ReportMessage(ctx, "alice", msg.ID, ReportInput{Reason: "spam"})
	if err != nil {
		t.Fatalf("ReportMessage failed: %v", err)
	}

	if len(notifier.reports) != 1 || notifier.reports[0].ID != report.ID {
		t.Fatalf("expected one notification for %s, got %+v", report.ID, notifier.reports)
	}
	if notifier.chats[0].ID != chat.ID {
		t.Fatalf("notification should carry the chat, got %+v", notifier.chats[0])
	}
}
