package export

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

var transcriptTmpl = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; color: #1a1a1a; font-size: 12px; }
  h1 { font-size: 20px; margin-bottom: 2px; }
  .meta { color: #666; margin-bottom: 18px; }
  .message { margin-bottom: 10px; page-break-inside: avoid; }
  .sender { font-weight: 600; }
  .time { color: #999; font-size: 10px; margin-left: 6px; }
  .hidden { color: #b45309; font-size: 10px; margin-left: 6px; border: 1px solid #b45309; border-radius: 3px; padding: 0 3px; }
  .body { margin: 2px 0 0 0; white-space: pre-wrap; }
  .attachment { color: #2563eb; font-size: 10px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">{{.Kind}} chat &middot; {{.ParticipantCount}} participants &middot; exported {{fmtTime .ExportedAt}} UTC</div>
{{range .Messages}}<div class="message">
  <span class="sender">{{.SenderID}}</span><span class="time">{{fmtTime .SentAt}}</span>{{if .HiddenByAdmin}}<span class="hidden">hidden</span>{{end}}
  <p class="body">{{.Body}}</p>
  {{if .AttachmentURL}}<div class="attachment">attachment: {{.AttachmentURL}}</div>{{end}}
</div>
{{end}}
</body>
</html>`))

type transcriptMessage struct {
	SenderID      string
	Body          string
	AttachmentURL string
	SentAt        time.Time
	HiddenByAdmin bool
}

type transcriptData struct {
	Title            string
	Kind             string
	ParticipantCount int
	ExportedAt       time.Time
	Messages         []transcriptMessage
}

func renderTranscriptHTML(data transcriptData) (string, error) {
	if strings.TrimSpace(data.Title) == "" {
		data.Title = "Chat transcript"
	}
	var out strings.Builder
	if err := transcriptTmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return out.String(), nil
}
