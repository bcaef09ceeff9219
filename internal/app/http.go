package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/accounts"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/auth"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

// messageSearcher runs a full-text query against one chat's messages. The
// handler re-applies visibility filtering to whatever comes back.
type messageSearcher interface {
	SearchMessages(ctx context.Context, chatID, query string, limit int) ([]store.Message, error)
}

// mediaSigner issues presigned upload and download URLs for attachments.
type mediaSigner interface {
	PresignUpload(ctx context.Context, objectName, contentType string) (string, error)
	PresignDownload(ctx context.Context, objectName string) (string, error)
}

// transcriptExporter renders a chat transcript to PDF.
type transcriptExporter interface {
	TranscriptPDF(ctx context.Context, chat ChatView, messages []MessageView, participants []store.Participant) ([]byte, error)
}

type HTTPServer struct {
	service    *Service
	accounts   *accounts.Service
	corsOrigin string
	ws         http.Handler
	search     messageSearcher
	media      mediaSigner
	exporter   transcriptExporter
}

func NewHTTPServer(service *Service, accountsService *accounts.Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, accounts: accountsService, corsOrigin: corsOrigin}
}

// WithWebsocket mounts a realtime handler at /api/ws. Optional.
func (s *HTTPServer) WithWebsocket(handler http.Handler) *HTTPServer {
	s.ws = handler
	return s
}

// WithSearch enables GET /api/chats/{id}/search. Optional.
func (s *HTTPServer) WithSearch(search messageSearcher) *HTTPServer {
	s.search = search
	return s
}

// WithMedia enables POST /api/uploads. Optional.
func (s *HTTPServer) WithMedia(media mediaSigner) *HTTPServer {
	s.media = media
	return s
}

// WithExporter enables GET /api/chats/{id}/export. Optional.
func (s *HTTPServer) WithExporter(exporter transcriptExporter) *HTTPServer {
	s.exporter = exporter
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.accounts.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeSession(w, session)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		session := accounts.Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.accounts.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.accounts.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		session, err := s.accounts.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        session.UserID,
			"userName":      session.UserName,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if s.ws != nil && r.URL.Path == "/api/ws" {
		s.ws.ServeHTTP(w, r.WithContext(withUserID(r.Context(), session.UserID)))
		return
	}

	if r.URL.Path == "/api/chats" {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListChats(r.Context(), session.UserID)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"chats": items})
			return
		}
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chats/individual" {
		var body CreateIndividualChatInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		chat, err := s.service.CreateIndividualChat(r.Context(), session.UserID, body)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chat)
		return
	}

	if r.Method == http.MethodPost && (r.URL.Path == "/api/chats/group" || r.URL.Path == "/api/chats/broadcast") {
		var body CreateGroupChatInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		create := s.service.CreateGroupChat
		if strings.HasSuffix(r.URL.Path, "/broadcast") {
			create = s.service.CreateBroadcastChat
		}
		chat, err := create(r.Context(), session.UserID, body)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chat)
		return
	}

	if r.URL.Path == "/api/blocks" {
		switch r.Method {
		case http.MethodGet:
			ids, err := s.service.ListBlockedUsers(r.Context(), session.UserID)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"blockedUserIds": ids})
			return
		case http.MethodPost:
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.BlockUser(r.Context(), session.UserID, body.UserID); err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/uploads" {
		s.handlePresignUpload(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "blocks" && r.Method == http.MethodDelete {
		if err := s.service.UnblockUser(r.Context(), session.UserID, parts[2]); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "chats" {
		s.routeChat(w, r, session, parts[2], parts[3:])
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "messages" {
		s.routeMessage(w, r, session, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeChat(w http.ResponseWriter, r *http.Request, session accounts.Session, chatID string, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			chat, err := s.service.GetChat(ctx, session.UserID, chatID)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, chat)
			return
		case http.MethodDelete:
			if err := s.retryUnavailable(func() error {
				return s.service.DeactivateChat(ctx, session.UserID, chatID)
			}); err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	switch rest[0] {
	case "name":
		if r.Method != http.MethodPut {
			break
		}
		var body RenameChatInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.retryUnavailable(func() error {
			return s.service.RenameChat(ctx, session.UserID, chatID, body)
		}); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return

	case "settings":
		if r.Method != http.MethodPut {
			break
		}
		var body ChatSettingsInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateChatSettings(ctx, session.UserID, chatID, body); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return

	case "participants":
		s.routeParticipants(w, r, session, chatID, rest[1:])
		return

	case "admins":
		s.routeAdmins(w, r, session, chatID, rest[1:])
		return

	case "messages":
		switch r.Method {
		case http.MethodGet:
			limit := queryInt(r, "limit", 200)
			items, err := s.service.ListMessages(ctx, session.UserID, chatID, limit)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"messages": items})
			return
		case http.MethodPost:
			var body SendMessageInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			msg, err := s.service.SendMessage(ctx, session.UserID, chatID, body)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, msg)
			return
		}

	case "reports":
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListChatReports(ctx, session.UserID, chatID)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"reports": reportViews(items)})
			return
		case http.MethodPost:
			var body ReportInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			report, err := s.service.ReportUser(ctx, session.UserID, chatID, body)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, reportView(report))
			return
		}

	case "search":
		if r.Method != http.MethodGet {
			break
		}
		s.handleChatSearch(w, r, session, chatID)
		return

	case "export":
		if r.Method != http.MethodGet {
			break
		}
		s.handleChatExport(w, r, session, chatID)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeParticipants(w http.ResponseWriter, r *http.Request, session accounts.Session, chatID string, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListChatParticipants(ctx, session.UserID, chatID)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"participants": participantViews(items)})
			return
		case http.MethodPost:
			var body AddParticipantInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.retryUnavailable(func() error {
				return s.service.AddParticipant(ctx, session.UserID, chatID, body)
			}); err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	targetID := rest[0]

	if len(rest) == 1 && r.Method == http.MethodDelete {
		if err := s.retryUnavailable(func() error {
			return s.service.RemoveParticipant(ctx, session.UserID, chatID, targetID)
		}); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(rest) == 2 && rest[1] == "can-send" && r.Method == http.MethodPut {
		var body SetSendPermissionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.retryUnavailable(func() error {
			return s.service.SetMemberSendPermission(ctx, session.UserID, chatID, targetID, body)
		}); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeAdmins(w http.ResponseWriter, r *http.Request, session accounts.Session, chatID string, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListChatAdmins(ctx, session.UserID, chatID)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"admins": adminViews(items)})
			return
		case http.MethodPost:
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.retryUnavailable(func() error {
				return s.service.AssignChatAdmin(ctx, session.UserID, chatID, body.UserID)
			}); err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(rest) == 1 && r.Method == http.MethodDelete {
		if err := s.retryUnavailable(func() error {
			return s.service.RemoveChatAdmin(ctx, session.UserID, chatID, rest[0])
		}); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeMessage(w http.ResponseWriter, r *http.Request, session accounts.Session, messageID string, rest []string) {
	ctx := r.Context()

	if len(rest) == 0 && r.Method == http.MethodDelete {
		if err := s.service.DeleteOwnMessage(ctx, session.UserID, messageID); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(rest) == 1 && r.Method == http.MethodPost {
		switch rest[0] {
		case "hide":
			if err := s.retryUnavailable(func() error {
				return s.service.HideMessage(ctx, session.UserID, messageID)
			}); err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case "unhide":
			if err := s.retryUnavailable(func() error {
				return s.service.UnhideMessage(ctx, session.UserID, messageID)
			}); err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case "report":
			var body ReportInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			report, err := s.service.ReportMessage(ctx, session.UserID, messageID, body)
			if err != nil {
				s.respondError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, reportView(report))
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body accounts.SignUpInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.accounts.SignUp(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrEmailTaken):
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
		case errors.Is(err, accounts.ErrWeakPassword):
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Password too short", nil)
		case errors.Is(err, accounts.ErrInvalidEmail):
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid email address", nil)
		default:
			s.respondError(w, err)
		}
		return
	}
	writeSession(w, session)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body accounts.SignInInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.accounts.SignIn(r.Context(), body)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		s.respondError(w, err)
		return
	}
	writeSession(w, session)
}

func (s *HTTPServer) handleChatSearch(w http.ResponseWriter, r *http.Request, session accounts.Session, chatID string) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	limit := queryInt(r, "limit", 20)

	hits, err := s.search.SearchMessages(r.Context(), chatID, query, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	items, err := s.service.FilterVisible(r.Context(), session.UserID, chatID, hits)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}

func (s *HTTPServer) handleChatExport(w http.ResponseWriter, r *http.Request, session accounts.Session, chatID string) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
		return
	}
	ctx := r.Context()

	chat, err := s.service.GetChat(ctx, session.UserID, chatID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	messages, err := s.service.ListMessages(ctx, session.UserID, chatID, 10000)
	if err != nil {
		s.respondError(w, err)
		return
	}
	participants, err := s.service.ListChatParticipants(ctx, session.UserID, chatID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	pdf, err := s.exporter.TranscriptPDF(ctx, chat, messages, participants)
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript-`+chatID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *HTTPServer) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	if s.media == nil {
		writeError(w, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
		return
	}
	var body struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.FileName) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fileName is required", nil)
		return
	}

	uploadURL, objectName, downloadURL, err := s.presign(r.Context(), body.FileName, body.ContentType)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uploadUrl":   uploadURL,
		"objectName":  objectName,
		"downloadUrl": downloadURL,
	})
}

func (s *HTTPServer) presign(ctx context.Context, fileName, contentType string) (uploadURL, objectName, downloadURL string, err error) {
	objectName = randomRequestID() + "/" + fileName
	uploadURL, err = s.media.PresignUpload(ctx, objectName, contentType)
	if err != nil {
		return "", "", "", err
	}
	downloadURL, err = s.media.PresignDownload(ctx, objectName)
	if err != nil {
		return "", "", "", err
	}
	return uploadURL, objectName, downloadURL, nil
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (accounts.Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return accounts.Session{}, false
	}
	session, err := s.accounts.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return accounts.Session{}, false
	}
	return session, true
}

// retryUnavailable retries a mutation once when the store looks transiently
// unavailable. Guarded mutations are safe to repeat.
func (s *HTTPServer) retryUnavailable(fn func() error) error {
	err := fn()
	if err != nil && isUnavailable(err) {
		err = fn()
	}
	return err
}

func isUnavailable(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded)
}

func (s *HTTPServer) respondError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func writeSession(w http.ResponseWriter, session accounts.Session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
	})
}

type participantPayload struct {
	UserID   string    `json:"userId"`
	CanSend  bool      `json:"canSend"`
	JoinedAt time.Time `json:"joinedAt"`
}

func participantViews(items []store.Participant) []participantPayload {
	views := make([]participantPayload, 0, len(items))
	for _, p := range items {
		views = append(views, participantPayload{UserID: p.UserID, CanSend: p.CanSend, JoinedAt: p.JoinedAt})
	}
	return views
}

type adminPayload struct {
	UserID     string    `json:"userId"`
	AssignedBy string    `json:"assignedBy"`
	AssignedAt time.Time `json:"assignedAt"`
}

func adminViews(items []store.ChatAdmin) []adminPayload {
	views := make([]adminPayload, 0, len(items))
	for _, a := range items {
		views = append(views, adminPayload{UserID: a.UserID, AssignedBy: a.AssignedBy, AssignedAt: a.AssignedAt})
	}
	return views
}

type reportPayload struct {
	ID           string    `json:"id"`
	ReporterID   string    `json:"reporterId"`
	ChatID       string    `json:"chatId"`
	MessageID    string    `json:"messageId,omitempty"`
	TargetUserID string    `json:"targetUserId,omitempty"`
	Reason       string    `json:"reason"`
	Contact      string    `json:"contact,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func reportView(report store.Report) reportPayload {
	view := reportPayload{
		ID:         report.ID,
		ReporterID: report.ReporterID,
		ChatID:     report.ChatID,
		Reason:     report.Reason,
		Contact:    report.Contact,
		CreatedAt:  report.CreatedAt,
	}
	if report.MessageID != nil {
		view.MessageID = *report.MessageID
	}
	if report.TargetUserID != nil {
		view.TargetUserID = *report.TargetUserID
	}
	return view
}

func reportViews(items []store.Report) []reportPayload {
	views := make([]reportPayload, 0, len(items))
	for _, report := range items {
		views = append(views, reportView(report))
	}
	return views
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type userIDKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id set by the HTTP layer
// for downstream handlers such as the websocket hub.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return err
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if isUnavailable(err) {
		unavailable := storeUnavailable("Store unavailable")
		return unavailable.Status, unavailable.Code, unavailable.Message, unavailable.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
