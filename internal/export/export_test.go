package export

import (
	"strings"
	"testing"
	"time"
)

func TestRenderTranscriptHTML(t *testing.T) {
	data := transcriptData{
		Title:            "Project Alpha",
		Kind:             "group",
		ParticipantCount: 3,
		ExportedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Messages: []transcriptMessage{
			{SenderID: "user_1", Body: "hello everyone", SentAt: time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC)},
			{SenderID: "user_2", Body: "spam link", SentAt: time.Date(2026, 7, 30, 9, 16, 0, 0, time.UTC), HiddenByAdmin: true},
		},
	}

	html, err := renderTranscriptHTML(data)
	if err != nil {
		t.Fatalf("renderTranscriptHTML failed: %v", err)
	}

	for _, want := range []string{
		"Project Alpha",
		"group chat",
		"3 participants",
		"hello everyone",
		`<span class="hidden">hidden</span>`,
		"2026-07-30 09:15",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected transcript to contain %q", want)
		}
	}
}

func TestRenderTranscriptHTMLEscapesBody(t *testing.T) {
	data := transcriptData{
		Title: "t",
		Messages: []transcriptMessage{
			{SenderID: "user_1", Body: `<script>alert("x")</script>`, SentAt: time.Now()},
		},
	}

	html, err := renderTranscriptHTML(data)
	if err != nil {
		t.Fatalf("renderTranscriptHTML failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("message body was not escaped")
	}
}

func TestRenderTranscriptHTMLDefaultTitle(t *testing.T) {
	html, err := renderTranscriptHTML(transcriptData{})
	if err != nil {
		t.Fatalf("renderTranscriptHTML failed: %v", err)
	}
	if !strings.Contains(html, "Chat transcript") {
		t.Error("expected default title for unnamed chats")
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b<c>")
	if got != "a%20b%3Cc%3E" {
		t.Errorf("unexpected encoding: %s", got)
	}
}
