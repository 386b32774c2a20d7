// Package service provides the authorized operations of the team inbox.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/authz"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

// TeamService handles teams and their membership.
type TeamService struct {
	store  store.TeamStore
	authz  *authz.Engine
	logger *logger.Logger
}

// NewTeamService creates a new team service.
func NewTeamService(s store.TeamStore, engine *authz.Engine, log *logger.Logger) *TeamService {
	return &TeamService{
		store:  s,
		authz:  engine,
		logger: log,
	}
}

// Create creates a team with userID as its first ADMIN.
func (s *TeamService) Create(ctx context.Context, userID string, req *model.CreateTeamRequest) (*model.Team, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) < 2 {
		return nil, apperr.Validation("team name must be at least 2 characters")
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	team := &model.Team{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Members: []model.TeamMember{
			{UserID: userID, Role: model.RoleAdmin, CreatedAt: now},
		},
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	for i := range team.Members {
		team.Members[i].TeamID = team.ID
	}

	s.logger.Info("team created",
		zap.String("team_id", team.ID),
		zap.String("user_id", userID),
	)
	return team, nil
}

// List returns the teams userID belongs to. No teams is an empty list.
func (s *TeamService) List(ctx context.Context, userID string) ([]model.Team, error) {
	return s.store.ListTeamsForUser(ctx, userID)
}

// Get returns a team with its members.
func (s *TeamService) Get(ctx context.Context, userID, teamID string) (*model.Team, error) {
	d, err := s.authz.Authorize(ctx, userID, teamID, authz.TeamRead)
	if err != nil {
		return nil, err
	}
	return d.Team, nil
}

// Update renames a team.
func (s *TeamService) Update(ctx context.Context, userID, teamID string, req *model.UpdateTeamRequest) (*model.Team, error) {
	d, err := s.authz.Authorize(ctx, userID, teamID, authz.TeamUpdate)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return d.Team, nil
	}

	name := strings.TrimSpace(*req.Name)
	if len(name) < 2 {
		return nil, apperr.Validation("team name must be at least 2 characters")
	}
	if name == d.Team.Name {
		return d.Team, nil
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return nil, err
	}

	team, err := s.store.RenameTeam(ctx, teamID, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("team renamed", zap.String("team_id", teamID), zap.String("user_id", userID))
	return team, nil
}

// Delete removes a team and everything it owns.
func (s *TeamService) Delete(ctx context.Context, userID, teamID string) error {
	if _, err := s.authz.Authorize(ctx, userID, teamID, authz.TeamDelete); err != nil {
		return err
	}
	if err := s.store.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	s.logger.Info("team deleted", zap.String("team_id", teamID), zap.String("user_id", userID))
	return nil
}

// ListMembers returns the members of a team.
func (s *TeamService) ListMembers(ctx context.Context, userID, teamID string) ([]model.TeamMember, error) {
	d, err := s.authz.Authorize(ctx, userID, teamID, authz.MemberList)
	if err != nil {
		return nil, err
	}
	if d.Team.Members == nil {
		return []model.TeamMember{}, nil
	}
	return d.Team.Members, nil
}

// AddMember adds a user to a team. The role defaults to VIEWER.
func (s *TeamService) AddMember(ctx context.Context, userID, teamID string, req *model.AddMemberRequest) (*model.TeamMember, error) {
	d, err := s.authz.Authorize(ctx, userID, teamID, authz.MemberAdd)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleViewer
	}
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	if d.Team.Member(req.UserID) != nil {
		return nil, apperr.Conflict("user is already a member of this team")
	}

	member := &model.TeamMember{
		TeamID:    teamID,
		UserID:    req.UserID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, err
	}

	s.logger.Info("member added",
		zap.String("team_id", teamID),
		zap.String("member_id", req.UserID),
		zap.String("role", string(role)),
	)
	return member, nil
}

// UpdateMemberRole changes a member's role. Setting the current role is a conflict.
func (s *TeamService) UpdateMemberRole(ctx context.Context, userID, teamID, memberID string, req *model.UpdateMemberRequest) (*model.TeamMember, error) {
	d, err := s.authz.Authorize(ctx, userID, teamID, authz.MemberUpdate)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, apperr.Validation("invalid role %q", req.Role)
	}

	member := d.Team.Member(memberID)
	if member == nil {
		return nil, apperr.NotFound("member not found in this team")
	}
	if member.Role == req.Role {
		return nil, apperr.Conflict("member already has this role")
	}

	updated, err := s.store.UpdateMemberRole(ctx, teamID, memberID, req.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("member role updated",
		zap.String("team_id", teamID),
		zap.String("member_id", memberID),
		zap.String("role", string(req.Role)),
	)
	return updated, nil
}

// RemoveMember removes a user from a team.
func (s *TeamService) RemoveMember(ctx context.Context, userID, teamID, memberID string) error {
	d, err := s.authz.Authorize(ctx, userID, teamID, authz.MemberRemove)
	if err != nil {
		return err
	}
	if d.Team.Member(memberID) == nil {
		return apperr.NotFound("member not found in this team")
	}
	if err := s.store.RemoveMember(ctx, teamID, memberID); err != nil {
		return err
	}
	s.logger.Info("member removed", zap.String("team_id", teamID), zap.String("member_id", memberID))
	return nil
}

func (s *TeamService) ensureNameFree(ctx context.Context, name string) error {
	_, err := s.store.GetTeamByName(ctx, name)
	switch {
	case err == nil:
		return apperr.Conflict("team name already exists")
	case apperr.IsKind(err, apperr.KindNotFound):
		return nil
	default:
		return err
	}
}
