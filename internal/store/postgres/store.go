// Package postgres implements store.Store on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

var _ store.Store = (*Store)(nil)

// Config holds database connection settings.
type Config struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
	AutoMigrate  bool
}

// Store is a gorm-backed store.Store.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open connects to Postgres, tunes the pool and optionally migrates the schema.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{db: db, logger: log}
	if cfg.AutoMigrate {
		log.Info("starting database migration")
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		log.Info("database migration completed")
	}
	return s, nil
}

// Migrate creates tables and the constraints gorm tags cannot express.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(
		&model.Team{},
		&model.TeamMember{},
		&model.TeamChannel{},
		&model.Contact{},
		&model.Conversation{},
		&model.Message{},
		&model.Note{},
		&model.Mention{},
	); err != nil {
		return err
	}

	// One OPEN conversation per (team, contact, channel).
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_one_open
		ON conversations (team_id, contact_id, channel)
		WHERE status = 'OPEN'
	`).Error
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps gorm errors onto apperr kinds.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindConflict, err, what+" already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.Wrap(apperr.KindNotFound, err, "referenced row for "+what+" not found")
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Teams

func (s *Store) CreateTeam(ctx context.Context, team *model.Team) error {
	return translate(s.db.WithContext(ctx).Create(team).Error, "team")
}

func (s *Store) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var team model.Team
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, user_id") }).
		First(&team, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "team")
	}
	return &team, nil
}

func (s *Store) GetTeamByName(ctx context.Context, name string) (*model.Team, error) {
	var team model.Team
	err := s.db.WithContext(ctx).Preload("Members").First(&team, "name = ?", name).Error
	if err != nil {
		return nil, translate(err, "team")
	}
	return &team, nil
}

func (s *Store) ListTeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	teams := []model.Team{}
	err := s.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (?)", s.db.Model(&model.TeamMember{}).Select("team_id").Where("user_id = ?", userID)).
		Order("created_at").
		Find(&teams).Error
	if err != nil {
		return nil, translate(err, "teams")
	}
	return teams, nil
}

func (s *Store) RenameTeam(ctx context.Context, id, name string) (*model.Team, error) {
	res := s.db.WithContext(ctx).Model(&model.Team{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, translate(res.Error, "team")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("team not found")
	}
	return s.GetTeam(ctx, id)
}

// DeleteTeam removes the team and everything it owns. The team row and its
// conversations are locked first so inserts of contacts, conversations, messages
// and notes either commit before the deletes run or fail once the parent is gone.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team model.Team
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&team, "id = ?", id).Error; err != nil {
			return translate(err, "team")
		}
		var locked []string
		if err := tx.Model(&model.Conversation{}).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("team_id = ?", id).Pluck("id", &locked).Error; err != nil {
			return fmt.Errorf("lock conversations: %w", err)
		}

		convIDs := tx.Model(&model.Conversation{}).Select("id").Where("team_id = ?", id)
		noteIDs := tx.Model(&model.Note{}).Select("id").Where("conversation_id IN (?)", convIDs)

		steps := []struct {
			what  string
			model any
			where string
			arg   any
		}{
			{"mentions", &model.Mention{}, "note_id IN (?)", noteIDs},
			{"notes", &model.Note{}, "conversation_id IN (?)", convIDs},
			{"messages", &model.Message{}, "conversation_id IN (?)", convIDs},
			{"conversations", &model.Conversation{}, "team_id = ?", id},
			{"contacts", &model.Contact{}, "team_id = ?", id},
			{"channels", &model.TeamChannel{}, "team_id = ?", id},
			{"members", &model.TeamMember{}, "team_id = ?", id},
		}
		for _, step := range steps {
			if err := tx.Where(step.where, step.arg).Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", step.what, err)
			}
		}

		if err := tx.Where("id = ?", id).Delete(&model.Team{}).Error; err != nil {
			return translate(err, "team")
		}
		s.logger.Info("team deleted", zap.String("team_id", id), zap.Int("conversations", len(locked)))
		return nil
	})
}

func (s *Store) AddMember(ctx context.Context, member *model.TeamMember) error {
	return translate(s.db.WithContext(ctx).Create(member).Error, "team member")
}

func (s *Store) UpdateMemberRole(ctx context.Context, teamID, userID string, role model.Role) (*model.TeamMember, error) {
	var member model.TeamMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TeamMember{}).
			Where("team_id = ? AND user_id = ?", teamID, userID).
			Update("role", role)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&member, "team_id = ? AND user_id = ?", teamID, userID).Error
	})
	if err != nil {
		return nil, translate(err, "team member")
	}
	return &member, nil
}

func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	res := s.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&model.TeamMember{})
	if res.Error != nil {
		return translate(res.Error, "team member")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("member not found in this team")
	}
	return nil
}

// Channels

func (s *Store) CreateChannel(ctx context.Context, ch *model.TeamChannel) error {
	return translate(s.db.WithContext(ctx).Create(ch).Error, "channel")
}

func (s *Store) GetChannelByValue(ctx context.Context, value string) (*model.TeamChannel, error) {
	var ch model.TeamChannel
	if err := s.db.WithContext(ctx).First(&ch, "value = ?", value).Error; err != nil {
		return nil, translate(err, "channel")
	}
	return &ch, nil
}

func (s *Store) FindChannel(ctx context.Context, value string, typ model.ChannelType) (*model.TeamChannel, error) {
	var ch model.TeamChannel
	if err := s.db.WithContext(ctx).First(&ch, "value = ? AND type = ?", value, typ).Error; err != nil {
		return nil, translate(err, "channel")
	}
	return &ch, nil
}

func (s *Store) ListChannels(ctx context.Context, teamID string) ([]model.TeamChannel, error) {
	channels := []model.TeamChannel{}
	if err := s.db.WithContext(ctx).Where("team_id = ?", teamID).Order("id").Find(&channels).Error; err != nil {
		return nil, translate(err, "channels")
	}
	return channels, nil
}

func (s *Store) DeleteChannel(ctx context.Context, teamID, channelID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", channelID, teamID).Delete(&model.TeamChannel{})
	if res.Error != nil {
		return translate(res.Error, "channel")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("channel not found")
	}
	return nil
}

// Contacts

func (s *Store) FindContact(ctx context.Context, teamID, phone string) (*model.Contact, error) {
	var c model.Contact
	if err := s.db.WithContext(ctx).First(&c, "team_id = ? AND phone = ?", teamID, phone).Error; err != nil {
		return nil, translate(err, "contact")
	}
	return &c, nil
}

func (s *Store) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var c model.Contact
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "contact")
	}
	return &c, nil
}

func (s *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "contact")
}

// Conversations

func (s *Store) FindOpenConversation(ctx context.Context, teamID, contactID string, channel model.ChannelType) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.WithContext(ctx).First(&c,
		"team_id = ? AND contact_id = ? AND channel = ? AND status = ?",
		teamID, contactID, channel, model.StatusOpen,
	).Error
	if err != nil {
		return nil, translate(err, "open conversation")
	}
	return &c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "conversation")
	}
	return &c, nil
}

func (s *Store) ListConversations(ctx context.Context, teamID string) ([]model.Conversation, error) {
	convs := []model.Conversation{}
	err := s.db.WithContext(ctx).Where("team_id = ?", teamID).Order("created_at DESC, id DESC").Find(&convs).Error
	if err != nil {
		return nil, translate(err, "conversations")
	}
	return convs, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "conversation")
}

func (s *Store) UpdateConversation(ctx context.Context, c *model.Conversation) error {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", c.ID).
		Updates(map[string]any{
			"status":         c.Status,
			"assigned_to_id": c.AssignedToID,
			"updated_at":     c.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error, "conversation")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("conversation not found")
	}
	return nil
}

// Messages

func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Share-lock the parent; DeleteTeam takes FOR UPDATE on it before deleting messages.
		var conv model.Conversation
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&conv, "id = ?", msg.ConversationID).Error
		if err != nil {
			return translate(err, "conversation")
		}
		return translate(tx.Create(msg).Error, "message")
	})
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgs := []model.Message{}
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("timestamp, id").Find(&msgs).Error
	if err != nil {
		return nil, translate(err, "messages")
	}
	return msgs, nil
}

func (s *Store) FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	var m model.Message
	if err := s.db.WithContext(ctx).First(&m, "provider_message_id = ?", providerMessageID).Error; err != nil {
		return nil, translate(err, "message")
	}
	return &m, nil
}

// Notes

func (s *Store) CreateNote(ctx context.Context, note *model.Note) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&conv, "id = ?", note.ConversationID).Error
		if err != nil {
			return translate(err, "conversation")
		}
		if err := tx.Create(note).Error; err != nil {
			s.logger.Warn("failed to create note", zap.String("conversation_id", note.ConversationID), zap.Error(err))
			return translate(err, "note")
		}
		return nil
	})
}

func (s *Store) ListNotes(ctx context.Context, conversationID string) ([]model.Note, error) {
	notes := []model.Note{}
	err := s.db.WithContext(ctx).Preload("Mentions").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, translate(err, "notes")
	}
	return notes, nil
}
