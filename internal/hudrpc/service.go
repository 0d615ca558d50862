// Package hudrpc exposes the snapshot orchestrator over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes the rest of the
// module uses, so no generated code is needed.
package hudrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region service-desc

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hud.v1.HudService"

const (
	methodIngest        = "/" + ServiceName + "/Ingest"
	methodGetSnapshot   = "/" + ServiceName + "/GetSnapshot"
	methodCompleteQuest = "/" + ServiceName + "/CompleteQuest"
	methodAssignQuests  = "/" + ServiceName + "/AssignQuests"
	methodAddModifier   = "/" + ServiceName + "/AddModifier"
)

// HudServiceServer is the server API of hud.v1.HudService.
type HudServiceServer interface {
	Ingest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteQuest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignQuests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddModifier(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes hud.v1.HudService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HudServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ingest", Handler: unary(methodIngest, HudServiceServer.Ingest)},
		{MethodName: "GetSnapshot", Handler: unary(methodGetSnapshot, HudServiceServer.GetSnapshot)},
		{MethodName: "CompleteQuest", Handler: unary(methodCompleteQuest, HudServiceServer.CompleteQuest)},
		{MethodName: "AssignQuests", Handler: unary(methodAssignQuests, HudServiceServer.AssignQuests)},
		{MethodName: "AddModifier", Handler: unary(methodAddModifier, HudServiceServer.AddModifier)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hud/v1/hud.proto",
}

// RegisterHudServiceServer registers srv on s.
func RegisterHudServiceServer(s grpc.ServiceRegistrar, srv HudServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type call func(HudServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, fn call) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(HudServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(HudServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc

// #region messages

// IngestRequest carries a batch in the signals wire format.
type IngestRequest struct {
	ProfileID string          `json:"profile_id"`
	Signals   json.RawMessage `json:"signals"`
}

// GetSnapshotRequest names the profile to read.
type GetSnapshotRequest struct {
	ProfileID string `json:"profile_id"`
}

// CompleteQuestRequest names the quest to complete.
type CompleteQuestRequest struct {
	ProfileID string `json:"profile_id"`
	QuestID   string `json:"quest_id"`
}

// QuestSpec describes a quest to assign. The server stamps the ID and the
// assignment time.
type QuestSpec struct {
	Title           string            `json:"title"`
	Cadence         state.Cadence     `json:"cadence"`
	Target          state.QuestTarget `json:"target"`
	RewardExp       int               `json:"reward_exp"`
	RewardModifiers []stat.Modifier   `json:"reward_modifiers,omitempty"`
}

// AssignQuestsRequest adds quests to a profile's active list.
type AssignQuestsRequest struct {
	ProfileID string      `json:"profile_id"`
	Quests    []QuestSpec `json:"quests"`
}

// AddModifierRequest attaches a modifier to one of the profile's stats.
type AddModifierRequest struct {
	ProfileID string        `json:"profile_id"`
	Modifier  stat.Modifier `json:"modifier"`
}

// Veto is one signal the gate dropped.
type Veto struct {
	Type   string `json:"type"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// CycleResponse reports one orchestrator cycle.
type CycleResponse struct {
	Action     string         `json:"action"`
	Reason     string         `json:"reason"`
	VersionID  string         `json:"version_id,omitempty"`
	GateAction string         `json:"gate_action,omitempty"`
	Vetoes     []Veto         `json:"vetoes,omitempty"`
	ExpAwarded int            `json:"exp_awarded"`
	Snapshot   state.Snapshot `json:"snapshot"`
}

// SnapshotResponse carries a profile's active snapshot.
type SnapshotResponse struct {
	ProfileID string         `json:"profile_id"`
	Snapshot  state.Snapshot `json:"snapshot"`
}

// #endregion messages

// #region codec

// toStruct encodes v as JSON and re-reads it as a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// #endregion codec
