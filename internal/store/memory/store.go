// Package memory is an in-process store.Store used for development and tests.
// It enforces the same uniqueness rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps every entity in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	teams         map[string]*model.Team
	members       map[string]map[string]*model.TeamMember // teamID -> userID
	channels      map[string]*model.TeamChannel
	contacts      map[string]*model.Contact
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message // conversationID
	notes         map[string][]*model.Note    // conversationID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		teams:         make(map[string]*model.Team),
		members:       make(map[string]map[string]*model.TeamMember),
		channels:      make(map[string]*model.TeamChannel),
		contacts:      make(map[string]*model.Contact),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
		notes:         make(map[string][]*model.Note),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Teams

func (s *Store) CreateTeam(ctx context.Context, team *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[team.ID]; exists {
		return apperr.Conflict("team %s already exists", team.ID)
	}
	for _, t := range s.teams {
		if t.Name == team.Name {
			return apperr.Conflict("team name already exists")
		}
	}

	stored := *team
	stored.Members = nil
	s.teams[team.ID] = &stored
	s.members[team.ID] = make(map[string]*model.TeamMember)
	for _, m := range team.Members {
		m := m
		m.TeamID = team.ID
		s.members[team.ID][m.UserID] = &m
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamLocked(id)
}

func (s *Store) teamLocked(id string) (*model.Team, error) {
	t, exists := s.teams[id]
	if !exists {
		return nil, apperr.NotFound("team not found")
	}
	out := *t
	out.Members = s.membersLocked(id)
	return &out, nil
}

func (s *Store) membersLocked(teamID string) []model.TeamMember {
	members := make([]model.TeamMember, 0, len(s.members[teamID]))
	for _, m := range s.members[teamID] {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].UserID < members[j].UserID
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})
	return members
}

func (s *Store) GetTeamByName(ctx context.Context, name string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, t := range s.teams {
		if t.Name == name {
			return s.teamLocked(id)
		}
	}
	return nil, apperr.NotFound("team not found")
}

func (s *Store) ListTeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := []model.Team{}
	for id := range s.teams {
		if _, ok := s.members[id][userID]; !ok {
			continue
		}
		t, _ := s.teamLocked(id)
		teams = append(teams, *t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].CreatedAt.Before(teams[j].CreatedAt) })
	return teams, nil
}

func (s *Store) RenameTeam(ctx context.Context, id, name string) (*model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.teams[id]
	if !exists {
		return nil, apperr.NotFound("team not found")
	}
	for otherID, other := range s.teams {
		if otherID != id && other.Name == name {
			return nil, apperr.Conflict("team name already exists")
		}
	}
	t.Name = name
	t.UpdatedAt = time.Now().UTC()
	return s.teamLocked(id)
}

func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[id]; !exists {
		return apperr.NotFound("team not found")
	}
	for convID, c := range s.conversations {
		if c.TeamID == id {
			delete(s.messages, convID)
			delete(s.notes, convID)
			delete(s.conversations, convID)
		}
	}
	for cid, c := range s.contacts {
		if c.TeamID == id {
			delete(s.contacts, cid)
		}
	}
	for chID, ch := range s.channels {
		if ch.TeamID == id {
			delete(s.channels, chID)
		}
	}
	delete(s.members, id)
	delete(s.teams, id)
	return nil
}

func (s *Store) AddMember(ctx context.Context, member *model.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, exists := s.members[member.TeamID]
	if !exists {
		return apperr.NotFound("team not found")
	}
	if _, dup := members[member.UserID]; dup {
		return apperr.Conflict("user is already a member of this team")
	}
	m := *member
	members[member.UserID] = &m
	return nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, teamID, userID string, role model.Role) (*model.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, exists := s.members[teamID][userID]
	if !exists {
		return nil, apperr.NotFound("member not found in this team")
	}
	m.Role = role
	out := *m
	return &out, nil
}

func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[teamID][userID]; !exists {
		return apperr.NotFound("member not found in this team")
	}
	delete(s.members[teamID], userID)
	return nil
}

// Channels

func (s *Store) CreateChannel(ctx context.Context, ch *model.TeamChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[ch.TeamID]; !exists {
		return apperr.NotFound("team not found")
	}
	for _, existing := range s.channels {
		if existing.Value == ch.Value {
			return apperr.Conflict("this channel value is already in use")
		}
	}
	c := *ch
	s.channels[ch.ID] = &c
	return nil
}

func (s *Store) GetChannelByValue(ctx context.Context, value string) (*model.TeamChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.channels {
		if ch.Value == value {
			out := *ch
			return &out, nil
		}
	}
	return nil, apperr.NotFound("channel not found")
}

func (s *Store) FindChannel(ctx context.Context, value string, typ model.ChannelType) (*model.TeamChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.channels {
		if ch.Value == value && ch.Type == typ {
			out := *ch
			return &out, nil
		}
	}
	return nil, apperr.NotFound("channel not found")
}

func (s *Store) ListChannels(ctx context.Context, teamID string) ([]model.TeamChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := []model.TeamChannel{}
	for _, ch := range s.channels {
		if ch.TeamID == teamID {
			channels = append(channels, *ch)
		}
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })
	return channels, nil
}

func (s *Store) DeleteChannel(ctx context.Context, teamID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.channels[channelID]
	if !exists || ch.TeamID != teamID {
		return apperr.NotFound("channel not found")
	}
	delete(s.channels, channelID)
	return nil
}

// Contacts

func (s *Store) FindContact(ctx context.Context, teamID, phone string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contacts {
		if c.TeamID == teamID && c.Phone == phone {
			out := *c
			return &out, nil
		}
	}
	return nil, apperr.NotFound("contact not found")
}

func (s *Store) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.contacts[id]
	if !exists {
		return nil, apperr.NotFound("contact not found")
	}
	out := *c
	return &out, nil
}

func (s *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[c.TeamID]; !exists {
		return apperr.NotFound("team not found")
	}
	for _, existing := range s.contacts {
		if existing.TeamID == c.TeamID && existing.Phone == c.Phone {
			return apperr.Conflict("contact already exists")
		}
	}
	stored := *c
	s.contacts[c.ID] = &stored
	return nil
}

// Conversations

func (s *Store) FindOpenConversation(ctx context.Context, teamID, contactID string, channel model.ChannelType) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.openLocked(teamID, contactID, channel, ""); c != nil {
		out := *c
		return &out, nil
	}
	return nil, apperr.NotFound("no open conversation")
}

// openLocked finds the OPEN conversation for the triple, ignoring exceptID.
func (s *Store) openLocked(teamID, contactID string, channel model.ChannelType, exceptID string) *model.Conversation {
	for id, c := range s.conversations {
		if id == exceptID {
			continue
		}
		if c.TeamID == teamID && c.ContactID == contactID && c.Channel == channel && c.Status == model.StatusOpen {
			return c
		}
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.conversations[id]
	if !exists {
		return nil, apperr.NotFound("conversation not found")
	}
	out := *c
	return &out, nil
}

func (s *Store) ListConversations(ctx context.Context, teamID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := []model.Conversation{}
	for _, c := range s.conversations {
		if c.TeamID == teamID {
			convs = append(convs, *c)
		}
	}
	// Newest first
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID > convs[j].ID
		}
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	return convs, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[c.TeamID]; !exists {
		return apperr.NotFound("team not found")
	}
	if c.Status == model.StatusOpen && s.openLocked(c.TeamID, c.ContactID, c.Channel, "") != nil {
		return apperr.Conflict("an open conversation already exists for this contact and channel")
	}
	stored := *c
	s.conversations[c.ID] = &stored
	return nil
}

func (s *Store) UpdateConversation(ctx context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.conversations[c.ID]
	if !exists {
		return apperr.NotFound("conversation not found")
	}
	if c.Status == model.StatusOpen && s.openLocked(existing.TeamID, existing.ContactID, existing.Channel, c.ID) != nil {
		return apperr.Conflict("an open conversation already exists for this contact and channel")
	}
	existing.Status = c.Status
	existing.AssignedToID = c.AssignedToID
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

// Messages

func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[msg.ConversationID]; !exists {
		return apperr.NotFound("conversation not found")
	}
	m := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &m)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]model.Message, 0, len(s.messages[conversationID]))
	for _, m := range s.messages[conversationID] {
		msgs = append(msgs, *m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (s *Store) FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ProviderMessageID != nil && *m.ProviderMessageID == providerMessageID {
				out := *m
				return &out, nil
			}
		}
	}
	return nil, apperr.NotFound("message not found")
}

// Notes

func (s *Store) CreateNote(ctx context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[note.ConversationID]; !exists {
		return apperr.NotFound("conversation not found")
	}
	n := *note
	n.Mentions = append([]model.Mention(nil), note.Mentions...)
	s.notes[note.ConversationID] = append(s.notes[note.ConversationID], &n)
	return nil
}

func (s *Store) ListNotes(ctx context.Context, conversationID string) ([]model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]model.Note, 0, len(s.notes[conversationID]))
	for _, n := range s.notes[conversationID] {
		out := *n
		out.Mentions = append([]model.Mention(nil), n.Mentions...)
		notes = append(notes, out)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}
