// Package export renders chat transcripts to PDF via headless Chrome.
package export

import (
	"context"
	"time"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/app"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// TranscriptPDF renders the messages the viewer is allowed to see. Callers
// pass messages already filtered for the requesting user, so an admin's
// export includes hidden messages (annotated) and a member's does not.
func (s *Service) TranscriptPDF(ctx context.Context, chat app.ChatView, messages []app.MessageView, participants []store.Participant) ([]byte, error) {
	data := transcriptData{
		Title:            chat.Name,
		Kind:             chat.Kind,
		ParticipantCount: len(participants),
		ExportedAt:       time.Now(),
	}
	for _, msg := range messages {
		data.Messages = append(data.Messages, transcriptMessage{
			SenderID:      msg.SenderID,
			Body:          msg.Body,
			AttachmentURL: msg.AttachmentURL,
			SentAt:        msg.SentAt,
			HiddenByAdmin: msg.HiddenByAdmin,
		})
	}

	html, err := renderTranscriptHTML(data)
	if err != nil {
		return nil, err
	}
	return htmlToPDF(ctx, html)
}
