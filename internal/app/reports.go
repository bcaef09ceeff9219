package app

import (
	"context"
	"strings"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/util"
)

// ReportMessage files a report against a specific message. The reporter must
// be able to see the chat; the report itself never alters the message.
func (s *Service) ReportMessage(ctx context.Context, actorID, messageID string, input ReportInput) (store.Report, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return store.Report{}, validationError("reason is required", nil)
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return store.Report{}, err
	}
	if !s.perm.IsActiveMember(ctx, msg.ChatID, actorID) {
		return store.Report{}, notFound("Message not found")
	}

	report := store.Report{
		ID:         util.NewID("rpt"),
		ReporterID: actorID,
		ChatID:     msg.ChatID,
		MessageID:  &msg.ID,
		Reason:     reason,
		Contact:    strings.TrimSpace(input.Contact),
	}
	if err := s.store.InsertReport(ctx, report); err != nil {
		return store.Report{}, err
	}
	s.notifyReport(ctx, report)
	return report, nil
}

// ReportUser files a report against a member of a chat the reporter belongs to.
func (s *Service) ReportUser(ctx context.Context, actorID, chatID string, input ReportInput) (store.Report, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return store.Report{}, validationError("reason is required", nil)
	}
	targetID := strings.TrimSpace(input.TargetUserID)
	if targetID == "" {
		return store.Report{}, validationError("targetUserId is required", nil)
	}

	if !s.perm.IsActiveMember(ctx, chatID, actorID) {
		return store.Report{}, notFound("Chat not found")
	}
	if _, err := s.store.GetParticipant(ctx, chatID, targetID); err != nil {
		return store.Report{}, err
	}

	report := store.Report{
		ID:           util.NewID("rpt"),
		ReporterID:   actorID,
		ChatID:       chatID,
		TargetUserID: &targetID,
		Reason:       reason,
		Contact:      strings.TrimSpace(input.Contact),
	}
	if err := s.store.InsertReport(ctx, report); err != nil {
		return store.Report{}, err
	}
	s.notifyReport(ctx, report)
	return report, nil
}

// ListChatReports is admin-only; reports expose reporter identities.
func (s *Service) ListChatReports(ctx context.Context, actorID, chatID string) ([]store.Report, error) {
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return nil, permissionDenied("Only chat admins can view reports")
	}
	return s.store.ListChatReports(ctx, chatID)
}

func (s *Service) notifyReport(ctx context.Context, report store.Report) {
	if s.notifier == nil {
		return
	}
	chat, err := s.store.GetChat(ctx, report.ChatID)
	if err != nil {
		chat = store.Chat{ID: report.ChatID}
	}
	_ = s.notifier.NotifyReport(ctx, report, chat)
}
