// Package api exposes the workspace state and scheduler over gRPC.
package api

import (
	"context"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
	"github.com/matheus3301/outreach/internal/state"
	"github.com/matheus3301/outreach/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Sender performs manual sends and reports in-flight work.
type Sender interface {
	SendNow(ctx context.Context, campaignID string, r state.Recipient) (state.Message, error)
	InFlight() int
}

// Service implements the Outreach gRPC service.
type Service struct {
	workspace string
	startedAt time.Time
	store     *state.Store
	sender    Sender
	machine   *status.Machine
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewService creates the service for one workspace.
func NewService(workspace string, st *state.Store, sender Sender, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		workspace: workspace,
		startedAt: time.Now(),
		store:     st,
		sender:    sender,
		machine:   machine,
		bus:       b,
		logger:    logger,
	}
}

func (s *Service) GetStatus(_ context.Context, _ *Empty) (*StatusResponse, error) {
	resp := &StatusResponse{
		Workspace:     s.workspace,
		StartedAt:     s.startedAt,
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
		InFlight:      s.sender.InFlight(),
		EventsDropped: s.bus.Dropped(),
	}
	if s.machine != nil {
		resp.Phase = string(s.machine.Current())
		resp.PhaseSince = s.machine.Since()
	}
	return resp, nil
}

func (s *Service) GetSnapshot(_ context.Context, _ *Empty) (*state.Snapshot, error) {
	snap := s.store.Snapshot()
	return &snap, nil
}

func (s *Service) GetStats(_ context.Context, _ *Empty) (*state.Stats, error) {
	st := state.ComputeStats(s.store.Snapshot())
	return &st, nil
}

// Accounts

func (s *Service) ListAccounts(_ context.Context, _ *Empty) (*ListAccountsResponse, error) {
	return &ListAccountsResponse{Items: s.store.Snapshot().Accounts}, nil
}

func (s *Service) AddAccount(_ context.Context, req *state.Account) (*state.Account, error) {
	acc, err := s.store.AddAccount(*req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account added", zap.String("account_id", acc.ID), zap.String("handle", acc.Handle))
	return &acc, nil
}

func (s *Service) UpdateAccount(_ context.Context, req *UpdateAccountRequest) (*state.Account, error) {
	acc, err := s.store.UpdateAccount(req.ID, req.Patch)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Service) DeleteAccount(_ context.Context, req *IDRequest) (*Empty, error) {
	return empty(s.store.DeleteAccount(req.ID))
}

func (s *Service) ResetDailyCounts(_ context.Context, _ *Empty) (*ResetResponse, error) {
	return &ResetResponse{Reset: s.store.ResetSentToday()}, nil
}

// Templates and prompts

func (s *Service) ListTemplates(_ context.Context, _ *Empty) (*ListTemplatesResponse, error) {
	return &ListTemplatesResponse{Items: s.store.Snapshot().Templates}, nil
}

func (s *Service) AddTemplate(_ context.Context, req *state.Template) (*state.Template, error) {
	t, err := s.store.AddTemplate(*req)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) UpdateTemplate(_ context.Context, req *UpdateTemplateRequest) (*state.Template, error) {
	t, err := s.store.UpdateTemplate(req.ID, req.Patch)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) DeleteTemplate(_ context.Context, req *IDRequest) (*Empty, error) {
	return empty(s.store.DeleteTemplate(req.ID))
}

func (s *Service) DuplicateTemplate(_ context.Context, req *IDRequest) (*state.Template, error) {
	t, err := s.store.DuplicateTemplate(req.ID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) ListPrompts(_ context.Context, _ *Empty) (*ListPromptsResponse, error) {
	return &ListPromptsResponse{Items: s.store.Snapshot().Prompts}, nil
}

func (s *Service) AddPrompt(_ context.Context, req *state.Prompt) (*state.Prompt, error) {
	p, err := s.store.AddPrompt(*req)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) UpdatePrompt(_ context.Context, req *UpdatePromptRequest) (*state.Prompt, error) {
	p, err := s.store.UpdatePrompt(req.ID, req.Patch)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) DeletePrompt(_ context.Context, req *IDRequest) (*Empty, error) {
	return empty(s.store.DeletePrompt(req.ID))
}

func (s *Service) DuplicatePrompt(_ context.Context, req *IDRequest) (*state.Prompt, error) {
	p, err := s.store.DuplicatePrompt(req.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Campaigns

func (s *Service) ListCampaigns(_ context.Context, _ *Empty) (*ListCampaignsResponse, error) {
	return &ListCampaignsResponse{Items: s.store.Snapshot().Campaigns}, nil
}

func (s *Service) AddCampaign(_ context.Context, req *state.Campaign) (*state.Campaign, error) {
	c, err := s.store.AddCampaign(*req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("campaign created", zap.String("campaign_id", c.ID), zap.Int("target", c.TargetCount))
	return &c, nil
}

func (s *Service) UpdateCampaign(_ context.Context, req *UpdateCampaignRequest) (*state.Campaign, error) {
	c, err := s.store.UpdateCampaign(req.ID, req.Patch)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) DeleteCampaign(_ context.Context, req *IDRequest) (*Empty, error) {
	return empty(s.store.DeleteCampaign(req.ID))
}

// TransitionCampaign applies a lifecycle action. An action that does not
// apply to the current status is reported with Applied=false, not an error.
func (s *Service) TransitionCampaign(_ context.Context, req *TransitionRequest) (*TransitionResponse, error) {
	action, err := state.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	snap := s.store.Snapshot()
	if _, ok := snap.Campaign(req.ID); !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "campaign %s not found", req.ID)
	}
	c, applied := s.store.TransitionCampaign(req.ID, action)
	if applied {
		s.logger.Info("campaign transitioned",
			zap.String("campaign_id", c.ID),
			zap.String("action", string(action)),
			zap.String("status", string(c.Status)))
	}
	return &TransitionResponse{Applied: applied, Campaign: c}, nil
}

// Messages

func (s *Service) ListMessages(_ context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	if req.Limit < 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "limit must not be negative")
	}
	var items []state.Message
	for _, m := range s.store.Snapshot().Messages {
		if req.CampaignID != "" && m.CampaignID != req.CampaignID {
			continue
		}
		if req.AccountID != "" && m.AccountID != req.AccountID {
			continue
		}
		if req.Status != "" && m.Status != req.Status {
			continue
		}
		items = append(items, m)
	}
	total := len(items)
	if req.Limit > 0 && total > req.Limit {
		items = items[total-req.Limit:]
	}
	return &ListMessagesResponse{Items: items, Total: total}, nil
}

func (s *Service) EnqueueMessages(_ context.Context, req *EnqueueRequest) (*EnqueueResponse, error) {
	msgs, err := s.store.EnqueueMessages(req.CampaignID, req.Recipients)
	if err != nil {
		return nil, err
	}
	return &EnqueueResponse{Items: msgs}, nil
}

func (s *Service) SendNow(ctx context.Context, req *SendNowRequest) (*state.Message, error) {
	m, err := s.sender.SendNow(ctx, req.CampaignID, req.Recipient)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) RequeueMessage(_ context.Context, req *IDRequest) (*state.Message, error) {
	m, err := s.store.Requeue(req.ID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) DeleteMessage(_ context.Context, req *IDRequest) (*Empty, error) {
	return empty(s.store.DeleteMessage(req.ID))
}

// Watch streams bus events matching req.Prefix until the client goes away.
func (s *Service) Watch(ctx context.Context, req *WatchRequest, send func(*Event) error) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if err := send(&Event{Kind: evt.Kind, Timestamp: evt.Timestamp, Payload: evt.Payload}); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func empty(err error) (*Empty, error) {
	if err != nil {
		return nil, err
	}
	return &Empty{}, nil
}
