// Package client is the typed gRPC client for a workspace daemon.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/outreach/internal/api"
	"github.com/matheus3301/outreach/internal/state"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func call[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	if req == nil {
		req = api.Empty{}
	}
	in, err := api.ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.Method(method), in, out); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := api.FromStruct(out, resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	return call[api.StatusResponse](ctx, c, "GetStatus", nil)
}

func (c *Client) Snapshot(ctx context.Context) (*state.Snapshot, error) {
	return call[state.Snapshot](ctx, c, "GetSnapshot", nil)
}

func (c *Client) Stats(ctx context.Context) (*state.Stats, error) {
	return call[state.Stats](ctx, c, "GetStats", nil)
}

func (c *Client) Accounts(ctx context.Context) ([]state.Account, error) {
	resp, err := call[api.ListAccountsResponse](ctx, c, "ListAccounts", nil)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AddAccount(ctx context.Context, a state.Account) (*state.Account, error) {
	return call[state.Account](ctx, c, "AddAccount", a)
}

func (c *Client) UpdateAccount(ctx context.Context, id string, p state.AccountPatch) (*state.Account, error) {
	return call[state.Account](ctx, c, "UpdateAccount", api.UpdateAccountRequest{ID: id, Patch: p})
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	_, err := call[api.Empty](ctx, c, "DeleteAccount", api.IDRequest{ID: id})
	return err
}

func (c *Client) ResetDailyCounts(ctx context.Context) (int, error) {
	resp, err := call[api.ResetResponse](ctx, c, "ResetDailyCounts", nil)
	if err != nil {
		return 0, err
	}
	return resp.Reset, nil
}

func (c *Client) Templates(ctx context.Context) ([]state.Template, error) {
	resp, err := call[api.ListTemplatesResponse](ctx, c, "ListTemplates", nil)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AddTemplate(ctx context.Context, t state.Template) (*state.Template, error) {
	return call[state.Template](ctx, c, "AddTemplate", t)
}

func (c *Client) UpdateTemplate(ctx context.Context, id string, p state.TemplatePatch) (*state.Template, error) {
	return call[state.Template](ctx, c, "UpdateTemplate", api.UpdateTemplateRequest{ID: id, Patch: p})
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	_, err := call[api.Empty](ctx, c, "DeleteTemplate", api.IDRequest{ID: id})
	return err
}

func (c *Client) DuplicateTemplate(ctx context.Context, id string) (*state.Template, error) {
	return call[state.Template](ctx, c, "DuplicateTemplate", api.IDRequest{ID: id})
}

func (c *Client) Prompts(ctx context.Context) ([]state.Prompt, error) {
	resp, err := call[api.ListPromptsResponse](ctx, c, "ListPrompts", nil)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AddPrompt(ctx context.Context, p state.Prompt) (*state.Prompt, error) {
	return call[state.Prompt](ctx, c, "AddPrompt", p)
}

func (c *Client) UpdatePrompt(ctx context.Context, id string, p state.PromptPatch) (*state.Prompt, error) {
	return call[state.Prompt](ctx, c, "UpdatePrompt", api.UpdatePromptRequest{ID: id, Patch: p})
}

func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	_, err := call[api.Empty](ctx, c, "DeletePrompt", api.IDRequest{ID: id})
	return err
}

func (c *Client) DuplicatePrompt(ctx context.Context, id string) (*state.Prompt, error) {
	return call[state.Prompt](ctx, c, "DuplicatePrompt", api.IDRequest{ID: id})
}

func (c *Client) Campaigns(ctx context.Context) ([]state.Campaign, error) {
	resp, err := call[api.ListCampaignsResponse](ctx, c, "ListCampaigns", nil)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AddCampaign(ctx context.Context, cmp state.Campaign) (*state.Campaign, error) {
	return call[state.Campaign](ctx, c, "AddCampaign", cmp)
}

func (c *Client) UpdateCampaign(ctx context.Context, id string, p state.CampaignPatch) (*state.Campaign, error) {
	return call[state.Campaign](ctx, c, "UpdateCampaign", api.UpdateCampaignRequest{ID: id, Patch: p})
}

func (c *Client) DeleteCampaign(ctx context.Context, id string) error {
	_, err := call[api.Empty](ctx, c, "DeleteCampaign", api.IDRequest{ID: id})
	return err
}

// Transition applies a lifecycle action ("start", "pause", "resume", "cancel").
func (c *Client) Transition(ctx context.Context, id, action string) (*api.TransitionResponse, error) {
	return call[api.TransitionResponse](ctx, c, "TransitionCampaign", api.TransitionRequest{ID: id, Action: action})
}

func (c *Client) Messages(ctx context.Context, req api.ListMessagesRequest) (*api.ListMessagesResponse, error) {
	return call[api.ListMessagesResponse](ctx, c, "ListMessages", req)
}

func (c *Client) Enqueue(ctx context.Context, campaignID string, recipients []state.Recipient) ([]state.Message, error) {
	resp, err := call[api.EnqueueResponse](ctx, c, "EnqueueMessages",
		api.EnqueueRequest{CampaignID: campaignID, Recipients: recipients})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) SendNow(ctx context.Context, campaignID string, r state.Recipient) (*state.Message, error) {
	return call[state.Message](ctx, c, "SendNow", api.SendNowRequest{CampaignID: campaignID, Recipient: r})
}

func (c *Client) Requeue(ctx context.Context, id string) (*state.Message, error) {
	return call[state.Message](ctx, c, "RequeueMessage", api.IDRequest{ID: id})
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	_, err := call[api.Empty](ctx, c, "DeleteMessage", api.IDRequest{ID: id})
	return err
}

var watchDesc = &grpc.StreamDesc{StreamName: api.WatchStream, ServerStreams: true}

// Watch streams events whose kind starts with prefix to fn until ctx is
// cancelled, the server closes the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, prefix string, fn func(api.Event) error) error {
	stream, err := c.conn.NewStream(ctx, watchDesc, api.Method(api.WatchStream))
	if err != nil {
		return err
	}
	in, err := api.ToStruct(api.WatchRequest{Prefix: prefix})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var evt api.Event
		if err := api.FromStruct(out, &evt); err != nil {
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
