// Package email delivers notifications via SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	// ModerationInbox receives new report notifications.
	ModerationInbox string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain-text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-bob"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type reportData struct {
	ReportID   string
	ReporterID string
	ChatID     string
	ChatName   string
	Subject    string
	Reason     string
	Contact    string
}

// NotifyReport mails a new report to the moderation inbox. Delivery is
// best-effort; the report is already persisted.
func (s *Service) NotifyReport(ctx context.Context, report store.Report, chat store.Chat) error {
	if !s.IsConfigured() || s.config.ModerationInbox == "" {
		return nil
	}

	data := reportData{
		ReportID:   report.ID,
		ReporterID: report.ReporterID,
		ChatID:     report.ChatID,
		ChatName:   chat.Name,
		Reason:     report.Reason,
		Contact:    report.Contact,
	}
	switch {
	case report.MessageID != nil:
		data.Subject = "message " + *report.MessageID
	case report.TargetUserID != nil:
		data.Subject = "user " + *report.TargetUserID
	default:
		data.Subject = "chat " + report.ChatID
	}

	html, err := renderTemplate(reportEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render report template: %w", err)
	}
	return s.SendHTMLEmail([]string{s.config.ModerationInbox}, "New report: "+data.Subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New report</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #cc3300; padding-bottom: 10px; margin-bottom: 20px; }
        table { border-collapse: collapse; }
        td { padding: 4px 12px 4px 0; vertical-align: top; }
        .label { color: #666; }
        .reason { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>New report</h1>
    </div>

    <table>
        <tr><td class="label">Report</td><td>{{.ReportID}}</td></tr>
        <tr><td class="label">Target</td><td>{{.Subject}}</td></tr>
        <tr><td class="label">Chat</td><td>{{.ChatID}}{{if .ChatName}} ({{.ChatName}}){{end}}</td></tr>
        <tr><td class="label">Reporter</td><td>{{.ReporterID}}</td></tr>
        {{if .Contact}}<tr><td class="label">Contact</td><td>{{.Contact}}</td></tr>{{end}}
    </table>

    <div class="reason">{{.Reason}}</div>

    <div class="footer">
        <p>Review this report from the chat's report queue.</p>
    </div>
</body>
</html>`
