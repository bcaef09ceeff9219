package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

// memStore is an in-memory dataStore with the same guarded-mutation
// semantics as the postgres implementation.
type memStore struct {
	mu           sync.Mutex
	users        map[string]store.User
	chats        map[string]store.Chat
	participants map[string]map[string]store.Participant
	admins       map[string]map[string]store.ChatAdmin
	messages     map[string]store.Message
	messageOrder []string
	blocks       map[string]map[string]struct{}
	reports      []store.Report
	now          time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]store.User),
		chats:        make(map[string]store.Chat),
		participants: make(map[string]map[string]store.Participant),
		admins:       make(map[string]map[string]store.ChatAdmin),
		messages:     make(map[string]store.Message),
		blocks:       make(map[string]map[string]struct{}),
		now:          time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memStore) addUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = store.User{ID: id, DisplayName: id, Email: id + "@example.com", CanSendMessages: true}
}

// --- users ---

func (m *memStore) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memStore) SetUserSendFlag(_ context.Context, userID string, canSend bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.CanSendMessages = canSend
	m.users[userID] = user
	return nil
}

// --- sessions (unused by the chat service) ---

func (m *memStore) SaveRefreshSession(context.Context, string, string, time.Time) error { return nil }
func (m *memStore) LookupRefreshSession(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (m *memStore) RevokeRefreshSession(context.Context, string) error         { return nil }
func (m *memStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (m *memStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }

// --- chats ---

func (m *memStore) GetChat(_ context.Context, chatID string) (store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return store.Chat{}, sql.ErrNoRows
	}
	return chat, nil
}

func (m *memStore) FindIndividualChat(_ context.Context, userA, userB string) (*store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, chat := range m.chats {
		if chat.Kind != store.ChatKindIndividual || !chat.IsActive {
			continue
		}
		members := m.participants[id]
		if _, okA := members[userA]; !okA {
			continue
		}
		if _, okB := members[userB]; !okB {
			continue
		}
		found := chat
		return &found, nil
	}
	return nil, nil
}

func (m *memStore) ReactivateIndividualChat(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok || chat.Kind != store.ChatKindIndividual || !chat.IsActive {
		return nil
	}
	for userID, p := range m.participants[chatID] {
		p.IsActive = true
		p.CanSend = true
		m.participants[chatID][userID] = p
	}
	return nil
}

func (m *memStore) InsertChatWithParticipants(_ context.Context, chat store.Chat, members []store.Participant, seedAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat.CreatedAt = m.tick()
	m.chats[chat.ID] = chat
	m.participants[chat.ID] = make(map[string]store.Participant)
	for _, member := range members {
		member.IsActive = true
		member.JoinedAt = m.now
		m.participants[chat.ID][member.UserID] = member
	}
	if seedAdmin {
		m.admins[chat.ID] = map[string]store.ChatAdmin{
			chat.CreatedBy: {ChatID: chat.ID, UserID: chat.CreatedBy, AssignedBy: chat.CreatedBy, AssignedAt: m.now},
		}
	}
	return nil
}

func (m *memStore) ListUserChats(_ context.Context, userID string) ([]store.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Chat, 0)
	for id, chat := range m.chats {
		if !chat.IsActive {
			continue
		}
		if p, ok := m.participants[id][userID]; ok && p.IsActive {
			items = append(items, chat)
		}
	}
	return items, nil
}

func (m *memStore) RenameChat(_ context.Context, chatID, actorID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok || chat.Kind != store.ChatKindGroup || !chat.IsActive || !m.isAdminLocked(chatID, actorID) {
		return false, nil
	}
	chat.Name = name
	m.chats[chatID] = chat
	return true, nil
}

func (m *memStore) SetChatInvitePolicy(_ context.Context, chatID, actorID string, allow bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok || !chat.IsActive || !m.isAdminLocked(chatID, actorID) {
		return false, nil
	}
	chat.AllowMemberInvites = allow
	m.chats[chatID] = chat
	return true, nil
}

func (m *memStore) DeactivateChat(_ context.Context, chatID, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok || !chat.IsActive || !m.isAdminLocked(chatID, actorID) {
		return false, nil
	}
	chat.IsActive = false
	m.chats[chatID] = chat
	return true, nil
}

// --- participants ---

func (m *memStore) GetParticipant(_ context.Context, chatID, userID string) (store.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[chatID][userID]
	if !ok {
		return store.Participant{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *memStore) ListParticipants(_ context.Context, chatID string) ([]store.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Participant, 0)
	for _, p := range m.participants[chatID] {
		if p.IsActive {
			items = append(items, p)
		}
	}
	return items, nil
}

func (m *memStore) AddParticipant(_ context.Context, chatID, userID string, canSend bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok || !chat.IsActive {
		return sql.ErrNoRows
	}
	if m.participants[chatID] == nil {
		m.participants[chatID] = make(map[string]store.Participant)
	}
	if chat.Kind == store.ChatKindIndividual {
		active := 0
		for _, p := range m.participants[chatID] {
			if p.IsActive {
				active++
			}
		}
		if _, already := m.participants[chatID][userID]; active >= 2 && !already {
			return store.ErrIndividualChatFull
		}
	}
	existing, ok := m.participants[chatID][userID]
	if ok {
		existing.IsActive = true
		existing.CanSend = canSend
		m.participants[chatID][userID] = existing
		return nil
	}
	m.participants[chatID][userID] = store.Participant{
		ChatID: chatID, UserID: userID, CanSend: canSend, IsActive: true, JoinedAt: m.tick(),
	}
	return nil
}

func (m *memStore) DeactivateParticipant(_ context.Context, chatID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[chatID][userID]
	if !ok || !p.IsActive {
		return false, nil
	}
	p.IsActive = false
	m.participants[chatID][userID] = p
	return true, nil
}

func (m *memStore) DeactivateParticipantAsAdmin(_ context.Context, chatID, actorID, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAdminLocked(chatID, actorID) {
		return false, nil
	}
	p, ok := m.participants[chatID][targetID]
	if !ok || !p.IsActive {
		return false, nil
	}
	p.IsActive = false
	m.participants[chatID][targetID] = p
	return true, nil
}

func (m *memStore) SetParticipantCanSend(_ context.Context, chatID, actorID, targetID string, canSend bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAdminLocked(chatID, actorID) {
		return false, nil
	}
	p, ok := m.participants[chatID][targetID]
	if !ok || !p.IsActive || p.CanSend == canSend {
		return false, nil
	}
	p.CanSend = canSend
	m.participants[chatID][targetID] = p
	return true, nil
}

// --- admins ---

func (m *memStore) isAdminLocked(chatID, userID string) bool {
	_, ok := m.admins[chatID][userID]
	return ok
}

func (m *memStore) IsChatAdmin(_ context.Context, chatID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isAdminLocked(chatID, userID), nil
}

func (m *memStore) ListChatAdmins(_ context.Context, chatID string) ([]store.ChatAdmin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.ChatAdmin, 0)
	for _, admin := range m.admins[chatID] {
		items = append(items, admin)
	}
	return items, nil
}

func (m *memStore) InsertChatAdmin(_ context.Context, chatID, targetID, assignedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return false, nil
	}
	bootstrap := targetID == assignedBy && chat.CreatedBy == assignedBy && len(m.admins[chatID]) == 0
	if !m.isAdminLocked(chatID, assignedBy) && !bootstrap {
		return false, nil
	}
	if m.isAdminLocked(chatID, targetID) {
		return false, nil
	}
	if m.admins[chatID] == nil {
		m.admins[chatID] = make(map[string]store.ChatAdmin)
	}
	m.admins[chatID][targetID] = store.ChatAdmin{ChatID: chatID, UserID: targetID, AssignedBy: assignedBy, AssignedAt: m.tick()}
	return true, nil
}

func (m *memStore) DeleteChatAdmin(_ context.Context, chatID, actorID, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAdminLocked(chatID, actorID) {
		return false, nil
	}
	if !m.isAdminLocked(chatID, targetID) {
		return false, nil
	}
	delete(m.admins[chatID], targetID)
	return true, nil
}

// --- messages ---

func (m *memStore) InsertMessage(_ context.Context, msg store.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[msg.ChatID]
	if !ok || !chat.IsActive {
		return false, nil
	}
	p, ok := m.participants[msg.ChatID][msg.SenderID]
	if !ok || !p.IsActive || !p.CanSend {
		return false, nil
	}
	user, ok := m.users[msg.SenderID]
	if !ok || !user.CanSendMessages {
		return false, nil
	}
	msg.SentAt = m.tick()
	m.messages[msg.ID] = msg
	m.messageOrder = append(m.messageOrder, msg.ID)
	return true, nil
}

func (m *memStore) GetMessage(_ context.Context, messageID string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return store.Message{}, sql.ErrNoRows
	}
	return msg, nil
}

func (m *memStore) ListMessages(_ context.Context, chatID string, limit int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 200
	}
	items := make([]store.Message, 0)
	for _, id := range m.messageOrder {
		msg := m.messages[id]
		if msg.ChatID != chatID {
			continue
		}
		items = append(items, msg)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (m *memStore) SetMessageHidden(_ context.Context, messageID, actorID string, hidden bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.IsHiddenByAdmin == hidden || !m.isAdminLocked(msg.ChatID, actorID) {
		return false, nil
	}
	msg.IsHiddenByAdmin = hidden
	m.messages[messageID] = msg
	return true, nil
}

func (m *memStore) SoftDeleteMessage(_ context.Context, messageID, senderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.SenderID != senderID || msg.IsDeleted {
		return false, nil
	}
	msg.IsDeleted = true
	m.messages[messageID] = msg
	return true, nil
}

// --- blocks ---

func (m *memStore) BlockUser(_ context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks[userID] == nil {
		m.blocks[userID] = make(map[string]struct{})
	}
	m.blocks[userID][targetID] = struct{}{}
	return nil
}

func (m *memStore) UnblockUser(_ context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks[userID], targetID)
	return nil
}

func (m *memStore) ListBlockedUsers(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]string, 0)
	for id := range m.blocks[userID] {
		items = append(items, id)
	}
	return items, nil
}

// --- reports ---

func (m *memStore) InsertReport(_ context.Context, report store.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	report.CreatedAt = m.tick()
	m.reports = append(m.reports, report)
	return nil
}

func (m *memStore) ListChatReports(_ context.Context, chatID string) ([]store.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Report, 0)
	for _, report := range m.reports {
		if report.ChatID == chatID {
			items = append(items, report)
		}
	}
	return items, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
