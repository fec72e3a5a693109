package server

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/montecarlo"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

const (
	RaceSimServiceName = "racesim.v1.RaceSim"
	SimulateRaceMethod = "/racesim.v1.RaceSim/SimulateRace"
)

// RaceSimServer is the gRPC surface. Messages are google.protobuf.Struct
// documents shaped like models.BatchRequest and models.Batch.
type RaceSimServer interface {
	SimulateRace(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RaceSimServiceDesc describes the RaceSim service for grpc.Server.RegisterService
var RaceSimServiceDesc = grpc.ServiceDesc{
	ServiceName: RaceSimServiceName,
	HandlerType: (*RaceSimServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SimulateRace",
			Handler:    simulateRaceHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "racesim/v1/racesim.proto",
}

func simulateRaceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaceSimServer).SimulateRace(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SimulateRaceMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaceSimServer).SimulateRace(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterRaceSimServer registers srv on s
func RegisterRaceSimServer(s grpc.ServiceRegistrar, srv RaceSimServer) {
	s.RegisterService(&RaceSimServiceDesc, srv)
}

// RaceSimClient calls the RaceSim service
type RaceSimClient struct {
	cc grpc.ClientConnInterface
}

func NewRaceSimClient(cc grpc.ClientConnInterface) *RaceSimClient {
	return &RaceSimClient{cc: cc}
}

func (c *RaceSimClient) SimulateRace(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SimulateRaceMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RaceSimGRPCServer runs each SimulateRace call as a stored batch and waits for it
type RaceSimGRPCServer struct {
	store    *BatchStore
	Executor *BatchExecutor
}

func NewRaceSimGRPCServer(store *BatchStore, executor *BatchExecutor) *RaceSimGRPCServer {
	return &RaceSimGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func (s *RaceSimGRPCServer) SimulateRace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	req, err := decodeBatchRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := validateBatchRequest(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	b, err := s.store.Create("", req, "")
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if _, err := s.Executor.Start(b.ID); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	logger.Info("Batch started (gRPC)", "batch_id", b.ID)

	final, err := s.Executor.Wait(ctx, b.ID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if _, stopErr := s.Executor.Stop(b.ID); stopErr != nil && !errors.Is(stopErr, ErrBatchTerminal) {
			logger.Warn("Failed to stop abandoned batch", "batch_id", b.ID, "error", stopErr)
		}
		return nil, status.FromContextError(ctxErr).Err()
	}
	if err != nil {
		switch {
		case errors.Is(err, montecarlo.ErrInvalidRequest):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, race.ErrConfiguration):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	if final.Status == models.BatchStatusCancelled {
		return nil, status.Error(codes.Aborted, "batch cancelled")
	}

	out, err := encodeBatch(final)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// decodeBatchRequest maps a Struct onto BatchRequest through its JSON form
func decodeBatchRequest(in *structpb.Struct) (models.BatchRequest, error) {
	var req models.BatchRequest
	raw, err := in.MarshalJSON()
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	return req, nil
}

func encodeBatch(b models.Batch) (*structpb.Struct, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return out, nil
}
