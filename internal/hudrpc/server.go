package hudrpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/logging"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/orchestrator"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/update"
)

// Orchestrator is the part of *orchestrator.Orchestrator the server calls.
type Orchestrator interface {
	Ingest(ctx context.Context, profileID string, batch []signals.Signal) (orchestrator.Outcome, error)
	CompleteQuest(ctx context.Context, profileID, questID string) (orchestrator.Outcome, error)
	AssignQuests(ctx context.Context, profileID string, quests []state.Quest) (orchestrator.Outcome, error)
	AddModifier(ctx context.Context, profileID string, m stat.Modifier) (orchestrator.Outcome, error)
	Current(profileID string) (state.Snapshot, error)
}

// Server hosts hud.v1.HudService.
type Server struct {
	orch   Orchestrator
	logger *zap.Logger
	now    func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithClock sets the clock used to stamp assigned quests.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server backed by orch.
func NewServer(orch Orchestrator, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{orch: orch, logger: logging.OrNop(logger), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest gates and applies a signal batch.
func (s *Server) Ingest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req IngestRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ProfileID == "" {
		return nil, status.Error(codes.InvalidArgument, "profile_id is required")
	}
	var batch []signals.Signal
	if len(req.Signals) > 0 && string(req.Signals) != "null" {
		var err error
		batch, err = signals.UnmarshalBatch(req.Signals)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	out, err := s.orch.Ingest(ctx, req.ProfileID, batch)
	if err != nil {
		return nil, s.toStatus("ingest", req.ProfileID, err)
	}
	return respond(cycleResponse(out))
}

// GetSnapshot returns the profile's active snapshot.
func (s *Server) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetSnapshotRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ProfileID == "" {
		return nil, status.Error(codes.InvalidArgument, "profile_id is required")
	}
	snap, err := s.orch.Current(req.ProfileID)
	if err != nil {
		return nil, s.toStatus("get snapshot", req.ProfileID, err)
	}
	return respond(SnapshotResponse{ProfileID: req.ProfileID, Snapshot: snap})
}

// CompleteQuest completes an active quest.
func (s *Server) CompleteQuest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CompleteQuestRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ProfileID == "" || req.QuestID == "" {
		return nil, status.Error(codes.InvalidArgument, "profile_id and quest_id are required")
	}
	out, err := s.orch.CompleteQuest(ctx, req.ProfileID, req.QuestID)
	if err != nil {
		return nil, s.toStatus("complete quest", req.ProfileID, err)
	}
	return respond(cycleResponse(out))
}

// AssignQuests builds quests from their specs and assigns them in one cycle.
func (s *Server) AssignQuests(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AssignQuestsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ProfileID == "" || len(req.Quests) == 0 {
		return nil, status.Error(codes.InvalidArgument, "profile_id and at least one quest are required")
	}
	at := s.now()
	quests := make([]state.Quest, 0, len(req.Quests))
	for i, spec := range req.Quests {
		q, err := update.NewQuest(spec.Title, spec.Cadence, spec.Target, spec.RewardExp, spec.RewardModifiers, at)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "quests[%d]: %v", i, err)
		}
		quests = append(quests, q)
	}
	out, err := s.orch.AssignQuests(ctx, req.ProfileID, quests)
	if err != nil {
		return nil, s.toStatus("assign quests", req.ProfileID, err)
	}
	return respond(cycleResponse(out))
}

// AddModifier attaches a buff or debuff to a tracked stat.
func (s *Server) AddModifier(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AddModifierRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ProfileID == "" {
		return nil, status.Error(codes.InvalidArgument, "profile_id is required")
	}
	switch req.Modifier.Kind {
	case stat.Buff, stat.Debuff:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "modifier kind %q is not buff or debuff", req.Modifier.Kind)
	}
	out, err := s.orch.AddModifier(ctx, req.ProfileID, req.Modifier)
	if err != nil {
		return nil, s.toStatus("add modifier", req.ProfileID, err)
	}
	return respond(cycleResponse(out))
}

func respond(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func (s *Server) toStatus(op, profileID string, err error) error {
	switch {
	case errors.Is(err, state.ErrNoSnapshot), errors.Is(err, update.ErrQuestNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, update.ErrQuestNotActive), errors.Is(err, orchestrator.ErrStatAbsent):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, orchestrator.ErrQuestExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, stat.ErrOutOfRange), errors.Is(err, stat.ErrUnknownKind):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, state.ErrStaleParent):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(op+" failed", zap.String("profile", profileID), zap.Error(err))
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

func cycleResponse(out orchestrator.Outcome) CycleResponse {
	resp := CycleResponse{
		Action:     out.Action,
		Reason:     out.Reason,
		VersionID:  out.VersionID,
		ExpAwarded: out.Metrics.ExpAwarded,
		Snapshot:   out.Snapshot,
	}
	if out.Gate != nil {
		resp.GateAction = out.Gate.Action
		for _, v := range out.Gate.VetoSignals {
			resp.Vetoes = append(resp.Vetoes, Veto{Type: string(v.Type), Index: v.Index, Reason: v.Reason})
		}
	}
	return resp
}
