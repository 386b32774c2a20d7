// Package authz decides whether a user may perform an action on a team.
package authz

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
	"github.com/capitalize-ai/team-inbox/pkg/metrics"
)

// Action names a protected operation.
type Action string

const (
	TeamRead         Action = "team.read"
	TeamList         Action = "team.list"
	TeamUpdate       Action = "team.update"
	TeamDelete       Action = "team.delete"
	MemberList       Action = "member.list"
	MemberAdd        Action = "member.add"
	MemberUpdate     Action = "member.update"
	MemberRemove     Action = "member.remove"
	ChannelList      Action = "channel.list"
	ChannelCreate    Action = "channel.create"
	ChannelDelete    Action = "channel.delete"
	ConversationList Action = "conversation.list"
	ConversationRead Action = "conversation.read"
	ConversationNew  Action = "conversation.create"
	ConversationEdit Action = "conversation.update"
	MessageList      Action = "message.list"
	NoteList         Action = "note.list"
	NoteCreate       Action = "note.create"
)

type requirement int

const (
	requireMember requirement = iota + 1
	requireAdmin
)

var requirements = map[Action]requirement{
	TeamRead:         requireMember,
	TeamList:         requireMember,
	MemberList:       requireMember,
	ChannelList:      requireMember,
	ConversationList: requireMember,
	ConversationRead: requireMember,
	ConversationNew:  requireMember,
	ConversationEdit: requireMember,
	MessageList:      requireMember,
	NoteList:         requireMember,
	NoteCreate:       requireMember,

	TeamUpdate:    requireAdmin,
	TeamDelete:    requireAdmin,
	MemberAdd:     requireAdmin,
	MemberUpdate:  requireAdmin,
	MemberRemove:  requireAdmin,
	ChannelCreate: requireAdmin,
	ChannelDelete: requireAdmin,
}

// Decision is a granted authorization. It carries what was loaded to decide
// so callers do not read the team twice.
type Decision struct {
	Team   *model.Team
	Member *model.TeamMember
}

// Engine evaluates actions against team membership.
type Engine struct {
	teams  store.TeamStore
	logger *logger.Logger
}

// NewEngine creates an engine.
func NewEngine(teams store.TeamStore, log *logger.Logger) *Engine {
	return &Engine{teams: teams, logger: log}
}

// Authorize checks that actorID may perform action on teamID.
func (e *Engine) Authorize(ctx context.Context, actorID, teamID string, action Action) (*Decision, error) {
	req, known := requirements[action]
	if !known {
		e.deny(action, actorID, teamID, "unknown action")
		return nil, apperr.Forbidden("action %q is not permitted", action)
	}

	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			metrics.RecordAuthz(string(action), false)
		}
		return nil, err
	}

	member := team.Member(actorID)
	if member == nil {
		e.deny(action, actorID, teamID, "not a member")
		return nil, apperr.Forbidden("you are not a member of this team")
	}
	if !allowed(member.Role, action) {
		if req == requireAdmin {
			e.deny(action, actorID, teamID, "admin role required")
			return nil, apperr.Forbidden("only team admins can perform this action")
		}
		e.deny(action, actorID, teamID, "unknown role")
		return nil, apperr.Forbidden("your role does not permit this action")
	}

	metrics.RecordAuthz(string(action), true)
	return &Decision{Team: team, Member: member}, nil
}

// allowed reports whether role satisfies action.
func allowed(role model.Role, action Action) bool {
	switch requirements[action] {
	case requireMember:
		return role.Valid()
	case requireAdmin:
		return role == model.RoleAdmin
	}
	return false
}

func (e *Engine) deny(action Action, actorID, teamID, reason string) {
	metrics.RecordAuthz(string(action), false)
	e.logger.Debug("authorization denied",
		zap.String("action", string(action)),
		zap.String("user_id", actorID),
		zap.String("team_id", teamID),
		zap.String("reason", reason),
	)
}
