// Package gameserver exposes combat resolution and combat log queries over gRPC.
package gameserver

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/idlebattle/internal/game/arena"
	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/combatlog"
	"github.com/cory-johannsen/idlebattle/internal/game/encounter"
)

// DuelRequest is the Duel body.
type DuelRequest struct {
	Challenger combat.Combatant `json:"challenger"`
	Defender   combat.Combatant `json:"defender"`
	Rewards    combat.Rewards   `json:"rewards"`
}

// DuelResponse is the Duel reply. Seed is a decimal string because Struct
// numbers are doubles and cannot carry every int64.
type DuelResponse struct {
	Seed       string            `json:"seed"`
	Result     combat.Result     `json:"result"`
	SessionIDs map[string]string `json:"sessionIds"`
}

// EncounterRequest is the Encounter body.
type EncounterRequest struct {
	Player     combat.Combatant `json:"player"`
	TemplateID string           `json:"templateId"`
}

// EncounterResponse is the Encounter reply.
type EncounterResponse struct {
	Result    combat.Result `json:"result"`
	SessionID string        `json:"sessionId"`
	Victory   bool          `json:"victory"`
}

// PlayerLogsRequest is the PlayerLogs body. A Limit <= 0 selects the store default.
type PlayerLogsRequest struct {
	PlayerID string `json:"playerId"`
	Limit    int    `json:"limit"`
}

// PlayerLogsResponse is the PlayerLogs reply.
type PlayerLogsResponse struct {
	Sessions []combatlog.StoredSession `json:"sessions"`
}

// SessionLogsRequest is the SessionLogs body.
type SessionLogsRequest struct {
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
}

// SessionLogsResponse is the SessionLogs reply.
type SessionLogsResponse struct {
	Logs []combat.LogEntry `json:"logs"`
}

// ClearLogsRequest is the ClearLogs body.
type ClearLogsRequest struct {
	PlayerID string `json:"playerId"`
}

// LogClearer removes a player's entire combat history.
// *combatlog.Archiver satisfies it when archiving is enabled.
type LogClearer interface {
	Clear(ctx context.Context, playerID string) error
}

// memoryClearer clears only the in-process store.
type memoryClearer struct {
	store *combatlog.Storage
}

func (m memoryClearer) Clear(_ context.Context, playerID string) error {
	m.store.ClearPlayerLogs(playerID)
	return nil
}

// CombatService implements CombatServiceServer on top of the arena, the
// encounter service and the combat log store.
type CombatService struct {
	arena      *arena.Service
	encounters *encounter.Service
	store      *combatlog.Storage
	clearer    LogClearer
	logger     *zap.Logger
}

// Option configures a CombatService.
type Option func(*CombatService)

// WithClearer routes ClearLogs through c instead of the in-memory store, so
// archived copies are removed as well.
func WithClearer(c LogClearer) Option {
	return func(s *CombatService) {
		if c != nil {
			s.clearer = c
		}
	}
}

// NewCombatService creates a CombatService.
//
// Precondition: arenaSvc, encounters and store must be non-nil.
// Postcondition: Returns a service ready for RegisterCombatServiceServer.
func NewCombatService(arenaSvc *arena.Service, encounters *encounter.Service, store *combatlog.Storage, logger *zap.Logger, opts ...Option) *CombatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CombatService{
		arena:      arenaSvc,
		encounters: encounters,
		store:      store,
		clearer:    memoryClearer{store: store},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Duel resolves a seeded duel between two combatants.
func (s *CombatService) Duel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DuelRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rec, err := s.arena.Duel(req.Challenger, req.Defender, req.Rewards)
	if err != nil {
		return nil, s.toStatus("duel", err)
	}
	return s.reply(DuelResponse{
		Seed:       strconv.FormatInt(rec.Seed, 10),
		Result:     rec.Result,
		SessionIDs: rec.SessionIDs,
	})
}

// Encounter fights the player against a templated enemy.
func (s *CombatService) Encounter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EncounterRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.TemplateID == "" {
		return nil, status.Error(codes.InvalidArgument, "templateId is required")
	}
	out, err := s.encounters.Fight(req.Player, req.TemplateID)
	if err != nil {
		return nil, s.toStatus("encounter", err)
	}
	return s.reply(EncounterResponse{
		Result:    out.Result,
		SessionID: out.SessionID,
		Victory:   out.Victory,
	})
}

// PlayerLogs returns a player's most recent sessions.
func (s *CombatService) PlayerLogs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req PlayerLogsRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.PlayerID == "" {
		return nil, status.Error(codes.InvalidArgument, "playerId is required")
	}
	return s.reply(PlayerLogsResponse{Sessions: s.store.PlayerLogs(req.PlayerID, req.Limit)})
}

// SessionLogs returns the log of one session.
func (s *CombatService) SessionLogs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionLogsRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.PlayerID == "" || req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "playerId and sessionId are required")
	}
	logs, ok := s.store.CombatLogs(req.PlayerID, req.SessionID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session %q not found for player %q", req.SessionID, req.PlayerID)
	}
	return s.reply(SessionLogsResponse{Logs: logs})
}

// Stats returns the store footprint.
func (s *CombatService) Stats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(s.store.StorageStats())
}

// ClearLogs removes a player's entire combat history. Idempotent.
func (s *CombatService) ClearLogs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ClearLogsRequest
	if err := DecodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.PlayerID == "" {
		return nil, status.Error(codes.InvalidArgument, "playerId is required")
	}
	if err := s.clearer.Clear(ctx, req.PlayerID); err != nil {
		s.logger.Error("clear logs failed", zap.String("player", req.PlayerID), zap.Error(err))
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return s.reply(struct{}{})
}

func (s *CombatService) reply(v any) (*structpb.Struct, error) {
	out, err := EncodeStruct(v)
	if err != nil {
		s.logger.Error("encoding reply", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC codes.
func (s *CombatService) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, combat.ErrInvalidCombatant):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, encounter.ErrTemplateNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		return status.Error(codes.Internal, err.Error())
	}
}
