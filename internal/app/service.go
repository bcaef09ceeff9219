package app

import (
	"context"
	"strings"
	"time"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/config"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/perm"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/util"
)

type CreateGroupChatInput struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

type CreateIndividualChatInput struct {
	PeerID string `json:"peerId"`
}

type RenameChatInput struct {
	Name string `json:"name"`
}

type ChatSettingsInput struct {
	AllowMemberInvites *bool `json:"allowMemberInvites"`
}

type AddParticipantInput struct {
	UserID string `json:"userId"`
}

type SendMessageInput struct {
	Body          string `json:"body"`
	AttachmentURL string `json:"attachmentUrl"`
}

type SetSendPermissionInput struct {
	CanSend bool `json:"canSend"`
}

type ReportInput struct {
	MessageID    string `json:"messageId"`
	TargetUserID string `json:"targetUserId"`
	Reason       string `json:"reason"`
	Contact      string `json:"contact"`
}

// ChatView is the wire shape for a chat, including the viewer's own standing
// in it.
type ChatView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Kind               string    `json:"kind"`
	CreatedBy          string    `json:"createdBy"`
	IsActive           bool      `json:"isActive"`
	AllowMemberInvites bool      `json:"allowMemberInvites"`
	CreatedAt          time.Time `json:"createdAt"`
	ViewerIsAdmin      bool      `json:"viewerIsAdmin"`
	ViewerCanSend      bool      `json:"viewerCanSend"`
}

// MessageView is a message after visibility filtering. HiddenByAdmin is only
// ever true for chat admins; everyone else never receives the message at all.
type MessageView struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chatId"`
	SenderID      string    `json:"senderId"`
	Body          string    `json:"body"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	SentAt        time.Time `json:"sentAt"`
	HiddenByAdmin bool      `json:"hiddenByAdmin,omitempty"`
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	SetUserSendFlag(context.Context, string, bool) error

	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	GetChat(context.Context, string) (store.Chat, error)
	FindIndividualChat(context.Context, string, string) (*store.Chat, error)
	ReactivateIndividualChat(context.Context, string) error
	InsertChatWithParticipants(context.Context, store.Chat, []store.Participant, bool) error
	ListUserChats(context.Context, string) ([]store.Chat, error)
	RenameChat(context.Context, string, string, string) (bool, error)
	SetChatInvitePolicy(context.Context, string, string, bool) (bool, error)
	DeactivateChat(context.Context, string, string) (bool, error)

	GetParticipant(context.Context, string, string) (store.Participant, error)
	ListParticipants(context.Context, string) ([]store.Participant, error)
	AddParticipant(context.Context, string, string, bool) error
	DeactivateParticipant(context.Context, string, string) (bool, error)
	DeactivateParticipantAsAdmin(context.Context, string, string, string) (bool, error)
	SetParticipantCanSend(context.Context, string, string, string, bool) (bool, error)

	IsChatAdmin(context.Context, string, string) (bool, error)
	ListChatAdmins(context.Context, string) ([]store.ChatAdmin, error)
	InsertChatAdmin(context.Context, string, string, string) (bool, error)
	DeleteChatAdmin(context.Context, string, string, string) (bool, error)

	InsertMessage(context.Context, store.Message) (bool, error)
	GetMessage(context.Context, string) (store.Message, error)
	ListMessages(context.Context, string, int) ([]store.Message, error)
	SetMessageHidden(context.Context, string, string, bool) (bool, error)
	SoftDeleteMessage(context.Context, string, string) (bool, error)

	BlockUser(context.Context, string, string) error
	UnblockUser(context.Context, string, string) error
	ListBlockedUsers(context.Context, string) ([]string, error)

	InsertReport(context.Context, store.Report) error
	ListChatReports(context.Context, string) ([]store.Report, error)

	Ping(ctx context.Context) error
}

// messageIndexer feeds the search backend. Indexing is best-effort; a failed
// index never fails the send.
type messageIndexer interface {
	IndexMessage(ctx context.Context, msg store.Message) error
	RemoveMessage(ctx context.Context, messageID string) error
}

// eventPublisher fans chat events out to connected clients.
type eventPublisher interface {
	PublishMessage(ctx context.Context, msg store.Message) error
	PublishChatEvent(ctx context.Context, chatID, kind string, payload any) error
}

// reportNotifier delivers new reports to the moderation inbox.
type reportNotifier interface {
	NotifyReport(ctx context.Context, report store.Report, chat store.Chat) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	perm     *perm.Evaluator
	indexer  messageIndexer
	events   eventPublisher
	notifier reportNotifier
}

func New(cfg config.Config, dataStore dataStore) *Service {
	return &Service{
		cfg:   cfg,
		store: dataStore,
		perm:  perm.NewEvaluator(dataStore),
	}
}

// WithIndexer attaches a search indexer. Optional.
func (s *Service) WithIndexer(indexer messageIndexer) *Service {
	s.indexer = indexer
	return s
}

// WithEvents attaches a realtime publisher. Optional.
func (s *Service) WithEvents(events eventPublisher) *Service {
	s.events = events
	return s
}

// WithNotifier attaches a report notifier. Optional.
func (s *Service) WithNotifier(notifier reportNotifier) *Service {
	s.notifier = notifier
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- chat lifecycle ---

// CreateIndividualChat returns the existing one-to-one chat for the pair when
// one is already active, so repeated creates are idempotent in either order.
func (s *Service) CreateIndividualChat(ctx context.Context, actorID string, input CreateIndividualChatInput) (ChatView, error) {
	peerID := strings.TrimSpace(input.PeerID)
	if peerID == "" {
		return ChatView{}, validationError("peerId is required", nil)
	}
	if peerID == actorID {
		return ChatView{}, validationError("cannot open an individual chat with yourself", nil)
	}
	if _, err := s.store.GetUserByID(ctx, peerID); err != nil {
		return ChatView{}, err
	}

	existing, err := s.store.FindIndividualChat(ctx, actorID, peerID)
	if err != nil {
		return ChatView{}, err
	}
	if existing != nil {
		// The pair resolves to their original chat even after one side left;
		// recreating it restores both memberships.
		if err := s.store.ReactivateIndividualChat(ctx, existing.ID); err != nil {
			return ChatView{}, err
		}
		return s.chatView(ctx, *existing, actorID), nil
	}

	chat := store.Chat{
		ID:        util.NewID("chat"),
		Kind:      store.ChatKindIndividual,
		CreatedBy: actorID,
		IsActive:  true,
	}
	members := []store.Participant{
		{ChatID: chat.ID, UserID: actorID, CanSend: true},
		{ChatID: chat.ID, UserID: peerID, CanSend: true},
	}
	if err := s.store.InsertChatWithParticipants(ctx, chat, members, false); err != nil {
		return ChatView{}, err
	}
	s.publishChatEvent(ctx, chat.ID, "chat.created", nil)
	return s.chatView(ctx, chat, actorID), nil
}

func (s *Service) CreateGroupChat(ctx context.Context, actorID string, input CreateGroupChatInput) (ChatView, error) {
	return s.createManagedChat(ctx, actorID, store.ChatKindGroup, input)
}

// CreateBroadcastChat creates a one-to-many chat. Invited members join with
// send disabled; only members the admins explicitly enable may post.
func (s *Service) CreateBroadcastChat(ctx context.Context, actorID string, input CreateGroupChatInput) (ChatView, error) {
	return s.createManagedChat(ctx, actorID, store.ChatKindBroadcast, input)
}

func (s *Service) createManagedChat(ctx context.Context, actorID, kind string, input CreateGroupChatInput) (ChatView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ChatView{}, validationError("name is required", nil)
	}

	memberCanSend := kind != store.ChatKindBroadcast
	chat := store.Chat{
		ID:        util.NewID("chat"),
		Name:      name,
		Kind:      kind,
		CreatedBy: actorID,
		IsActive:  true,
	}

	members := []store.Participant{{ChatID: chat.ID, UserID: actorID, CanSend: true}}
	seen := map[string]struct{}{actorID: {}}
	for _, memberID := range input.MemberIDs {
		memberID = strings.TrimSpace(memberID)
		if memberID == "" {
			continue
		}
		if _, dup := seen[memberID]; dup {
			continue
		}
		seen[memberID] = struct{}{}
		if _, err := s.store.GetUserByID(ctx, memberID); err != nil {
			return ChatView{}, err
		}
		members = append(members, store.Participant{ChatID: chat.ID, UserID: memberID, CanSend: memberCanSend})
	}

	if err := s.store.InsertChatWithParticipants(ctx, chat, members, true); err != nil {
		return ChatView{}, err
	}
	s.publishChatEvent(ctx, chat.ID, "chat.created", nil)
	return s.chatView(ctx, chat, actorID), nil
}

func (s *Service) ListChats(ctx context.Context, actorID string) ([]ChatView, error) {
	chats, err := s.store.ListUserChats(ctx, actorID)
	if err != nil {
		return nil, err
	}
	views := make([]ChatView, 0, len(chats))
	for _, chat := range chats {
		views = append(views, s.chatView(ctx, chat, actorID))
	}
	return views, nil
}

func (s *Service) GetChat(ctx context.Context, actorID, chatID string) (ChatView, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return ChatView{}, err
	}
	if !s.perm.IsActiveMember(ctx, chatID, actorID) {
		return ChatView{}, notFound("Chat not found")
	}
	return s.chatView(ctx, chat, actorID), nil
}

func (s *Service) ListChatParticipants(ctx context.Context, actorID, chatID string) ([]store.Participant, error) {
	if !s.perm.IsActiveMember(ctx, chatID, actorID) {
		return nil, notFound("Chat not found")
	}
	return s.store.ListParticipants(ctx, chatID)
}

// RenameChat renames a group chat. Individual and broadcast chats keep their
// derived names.
func (s *Service) RenameChat(ctx context.Context, actorID, chatID string, input RenameChatInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return validationError("name is required", nil)
	}

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Kind != store.ChatKindGroup {
		return validationError("only group chats can be renamed", nil)
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can rename the chat")
	}

	changed, err := s.store.RenameChat(ctx, chatID, actorID, name)
	if err != nil {
		return err
	}
	if !changed {
		return conflict("Chat could not be renamed")
	}
	s.publishChatEvent(ctx, chatID, "chat.renamed", map[string]string{"name": name})
	return nil
}

func (s *Service) UpdateChatSettings(ctx context.Context, actorID, chatID string, input ChatSettingsInput) error {
	if input.AllowMemberInvites == nil {
		return validationError("no settings provided", nil)
	}
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return err
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can change chat settings")
	}

	changed, err := s.store.SetChatInvitePolicy(ctx, chatID, actorID, *input.AllowMemberInvites)
	if err != nil {
		return err
	}
	if !changed {
		return conflict("Chat settings could not be updated")
	}
	return nil
}

func (s *Service) DeactivateChat(ctx context.Context, actorID, chatID string) error {
	if _, err := s.store.GetChat(ctx, chatID); err != nil {
		return err
	}
	if !s.perm.IsAdmin(ctx, chatID, actorID) {
		return permissionDenied("Only chat admins can close the chat")
	}

	changed, err := s.store.DeactivateChat(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !changed {
		return conflict("Chat could not be closed")
	}
	s.publishChatEvent(ctx, chatID, "chat.closed", nil)
	return nil
}

// AddParticipant adds or reactivates a member. A user removed and re-added
// keeps their original participant row; history attribution is unaffected.
func (s *Service) AddParticipant(ctx context.Context, actorID, chatID string, input AddParticipantInput) error {
	targetID := strings.TrimSpace(input.UserID)
	if targetID == "" {
		return validationError("userId is required", nil)
	}

	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsActive {
		return validationError("chat is closed", nil)
	}
	if chat.Kind == store.ChatKindIndividual {
		return validationError("individual chats cannot gain members", nil)
	}
	if !s.perm.MayInvite(ctx, chatID, actorID) {
		return permissionDenied("You cannot add members to this chat")
	}
	if _, err := s.store.GetUserByID(ctx, targetID); err != nil {
		return err
	}

	canSend := chat.Kind != store.ChatKindBroadcast
	if err := s.store.AddParticipant(ctx, chatID, targetID, canSend); err != nil {
		if err == store.ErrIndividualChatFull {
			return validationError("individual chats cannot gain members", nil)
		}
		return err
	}
	s.publishChatEvent(ctx, chatID, "member.added", map[string]string{"userId": targetID})
	return nil
}

// LeaveChat deactivates the actor's own membership.
func (s *Service) LeaveChat(ctx context.Context, actorID, chatID string) error {
	changed, err := s.store.DeactivateParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !changed {
		return notFound("You are not a member of this chat")
	}
	s.publishChatEvent(ctx, chatID, "member.left", map[string]string{"userId": actorID})
	return nil
}

func (s *Service) chatView(ctx context.Context, chat store.Chat, viewerID string) ChatView {
	return ChatView{
		ID:                 chat.ID,
		Name:               chat.Name,
		Kind:               chat.Kind,
		CreatedBy:          chat.CreatedBy,
		IsActive:           chat.IsActive,
		AllowMemberInvites: chat.AllowMemberInvites,
		CreatedAt:          chat.CreatedAt,
		ViewerIsAdmin:      s.perm.IsAdmin(ctx, chat.ID, viewerID),
		ViewerCanSend:      s.perm.CanSend(ctx, chat.ID, viewerID),
	}
}

func (s *Service) publishChatEvent(ctx context.Context, chatID, kind string, payload any) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishChatEvent(ctx, chatID, kind, payload)
}
