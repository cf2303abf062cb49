package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "outreach.v1.Outreach"

// Method returns the full gRPC method path for name.
func Method(name string) string {
	return "/" + ServiceName + "/" + name
}

// WatchStream is the name of the server-streaming event method.
const WatchStream = "Watch"

type handler interface {
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
}

// ServiceDesc describes the Outreach service. Every message is a
// google.protobuf.Struct; see ToStruct and FromStruct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*handler)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", (*Service).GetStatus),
		unary("GetSnapshot", (*Service).GetSnapshot),
		unary("GetStats", (*Service).GetStats),

		unary("ListAccounts", (*Service).ListAccounts),
		unary("AddAccount", (*Service).AddAccount),
		unary("UpdateAccount", (*Service).UpdateAccount),
		unary("DeleteAccount", (*Service).DeleteAccount),
		unary("ResetDailyCounts", (*Service).ResetDailyCounts),

		unary("ListTemplates", (*Service).ListTemplates),
		unary("AddTemplate", (*Service).AddTemplate),
		unary("UpdateTemplate", (*Service).UpdateTemplate),
		unary("DeleteTemplate", (*Service).DeleteTemplate),
		unary("DuplicateTemplate", (*Service).DuplicateTemplate),

		unary("ListPrompts", (*Service).ListPrompts),
		unary("AddPrompt", (*Service).AddPrompt),
		unary("UpdatePrompt", (*Service).UpdatePrompt),
		unary("DeletePrompt", (*Service).DeletePrompt),
		unary("DuplicatePrompt", (*Service).DuplicatePrompt),

		unary("ListCampaigns", (*Service).ListCampaigns),
		unary("AddCampaign", (*Service).AddCampaign),
		unary("UpdateCampaign", (*Service).UpdateCampaign),
		unary("DeleteCampaign", (*Service).DeleteCampaign),
		unary("TransitionCampaign", (*Service).TransitionCampaign),

		unary("ListMessages", (*Service).ListMessages),
		unary("EnqueueMessages", (*Service).EnqueueMessages),
		unary("SendNow", (*Service).SendNow),
		unary("RequeueMessage", (*Service).RequeueMessage),
		unary("DeleteMessage", (*Service).DeleteMessage),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: WatchStream, Handler: watchHandler, ServerStreams: true},
	},
}

// Register attaches svc to srv.
func Register(srv grpc.ServiceRegistrar, svc *Service) {
	srv.RegisterService(&ServiceDesc, svc)
}

// unary adapts a typed Service method to a Struct-in, Struct-out handler.
func unary[Req, Resp any](name string, h func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				r := new(Req)
				if err := FromStruct(req.(*structpb.Struct), r); err != nil {
					return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode %s request: %v", name, err)
				}
				resp, err := h(srv.(*Service), ctx, r)
				if err != nil {
					return nil, toStatus(err)
				}
				out, err := ToStruct(resp)
				if err != nil {
					return nil, grpcstatus.Errorf(codes.Internal, "encode %s response: %v", name, err)
				}
				return out, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Method(name)}
			return interceptor(ctx, in, info, call)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req WatchRequest
	if err := FromStruct(in, &req); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "decode watch request: %v", err)
	}
	return srv.(*Service).Watch(stream.Context(), &req, func(evt *Event) error {
		payload, err := toValue(evt.Payload)
		if err != nil {
			return grpcstatus.Errorf(codes.Internal, "encode event: %v", err)
		}
		out, err := ToStruct(&Event{Kind: evt.Kind, Timestamp: evt.Timestamp})
		if err != nil {
			return err
		}
		out.Fields["payload"] = payload
		return stream.SendMsg(out)
	})
}
