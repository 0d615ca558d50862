package hudrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/signals"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/stat"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region client-struct
// Client calls hud.v1.HudService.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to a HUD controller. Extra options are appended after
// insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection. Close is a
// no-op for it; the caller owns cc.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region ingest
// Ingest sends a signal batch for a profile.
func (c *Client) Ingest(ctx context.Context, profileID string, batch []signals.Signal) (CycleResponse, error) {
	raw, err := signals.MarshalBatch(batch)
	if err != nil {
		return CycleResponse{}, fmt.Errorf("ingest: %w", err)
	}
	var resp CycleResponse
	if err := c.invoke(ctx, methodIngest, IngestRequest{ProfileID: profileID, Signals: raw}, &resp); err != nil {
		return CycleResponse{}, fmt.Errorf("ingest rpc: %w", err)
	}
	return resp, nil
}
// #endregion ingest

// #region get-snapshot
// GetSnapshot reads a profile's active snapshot.
func (c *Client) GetSnapshot(ctx context.Context, profileID string) (state.Snapshot, error) {
	var resp SnapshotResponse
	if err := c.invoke(ctx, methodGetSnapshot, GetSnapshotRequest{ProfileID: profileID}, &resp); err != nil {
		return state.Snapshot{}, fmt.Errorf("get snapshot rpc: %w", err)
	}
	return resp.Snapshot, nil
}
// #endregion get-snapshot

// #region complete-quest
// CompleteQuest completes one of the profile's active quests.
func (c *Client) CompleteQuest(ctx context.Context, profileID, questID string) (CycleResponse, error) {
	var resp CycleResponse
	if err := c.invoke(ctx, methodCompleteQuest, CompleteQuestRequest{ProfileID: profileID, QuestID: questID}, &resp); err != nil {
		return CycleResponse{}, fmt.Errorf("complete quest rpc: %w", err)
	}
	return resp, nil
}
// #endregion complete-quest

// #region assign-quests
// AssignQuests assigns new quests to a profile. The server stamps their IDs.
func (c *Client) AssignQuests(ctx context.Context, profileID string, quests []QuestSpec) (CycleResponse, error) {
	var resp CycleResponse
	if err := c.invoke(ctx, methodAssignQuests, AssignQuestsRequest{ProfileID: profileID, Quests: quests}, &resp); err != nil {
		return CycleResponse{}, fmt.Errorf("assign quests rpc: %w", err)
	}
	return resp, nil
}
// #endregion assign-quests

// #region add-modifier
// AddModifier attaches a modifier to one of the profile's stats. An empty ID
// is filled in by the server.
func (c *Client) AddModifier(ctx context.Context, profileID string, m stat.Modifier) (CycleResponse, error) {
	var resp CycleResponse
	if err := c.invoke(ctx, methodAddModifier, AddModifierRequest{ProfileID: profileID, Modifier: m}, &resp); err != nil {
		return CycleResponse{}, fmt.Errorf("add modifier rpc: %w", err)
	}
	return resp, nil
}
// #endregion add-modifier

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return fromStruct(out, resp)
}
