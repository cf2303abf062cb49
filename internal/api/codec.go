package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/outreach/internal/state"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and responses travel as google.protobuf.Struct carrying the JSON
// form of the Go types in this package and in internal/state.

// ToStruct converts v to a Struct via its JSON encoding. v must encode as a
// JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into v through JSON.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// toValue converts an arbitrary payload to a Value via JSON.
func toValue(v any) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, state.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, state.ErrInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, state.ErrDuplicateHandle):
		code = codes.AlreadyExists
	case errors.Is(err, state.ErrCampaignClosed),
		errors.Is(err, state.ErrCampaignNotRunning),
		errors.Is(err, state.ErrTargetReached),
		errors.Is(err, state.ErrNoEligibleAccount),
		errors.Is(err, state.ErrNotRequeueable):
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	return grpcstatus.Error(code, err.Error())
}
