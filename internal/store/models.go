package store

import "time"

const (
	ChatKindIndividual = "individual"
	ChatKindGroup      = "group"
	ChatKindBroadcast  = "broadcast"
)

type User struct {
	ID              string
	DisplayName     string
	Email           string
	PasswordHash    string
	CanSendMessages bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Chat struct {
	ID                 string
	Name               string
	Kind               string
	CreatedBy          string
	IsActive           bool
	AllowMemberInvites bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Participant rows are never deleted, only deactivated, so message
// attribution survives removal. One row per (chat, user).
type Participant struct {
	ChatID   string
	UserID   string
	CanSend  bool
	IsActive bool
	JoinedAt time.Time
}

type ChatAdmin struct {
	ChatID     string
	UserID     string
	AssignedBy string
	AssignedAt time.Time
}

type Message struct {
	ID              string
	ChatID          string
	SenderID        string
	Body            string
	AttachmentURL   string
	SentAt          time.Time
	IsDeleted       bool
	IsHiddenByAdmin bool
}

type Report struct {
	ID           string
	ReporterID   string
	ChatID       string
	MessageID    *string
	TargetUserID *string
	Reason       string
	Contact      string
	CreatedAt    time.Time
}
