package pb

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName = "shuffle.v1.ShuffleService"
)

// ShuffleServiceServer is the server API for ShuffleService, shaped to
// match what protoc-gen-go-grpc generates from api/shuffle/v1/shuffle.proto.
type ShuffleServiceServer interface {
	JoinShuffleRoom(context.Context, *JoinShuffleRoomRequest) (*JoinShuffleRoomResponse, error)
	IsReadyForShuffle(context.Context, *IsReadyForShuffleRequest) (*IsReadyForShuffleResponse, error)
	ConnectShuffleRoom(*ConnectShuffleRoomRequest, ShuffleService_ConnectShuffleRoomServer) error
	ShuffleRound(context.Context, *ShuffleRoundRequest) (*ShuffleRoundResponse, error)
	SignShuffleTx(context.Context, *SignShuffleTxRequest) (*SignShuffleTxResponse, error)
}

// ShuffleService_ConnectShuffleRoomServer is the server-side stream handle
// for the ConnectShuffleRoom server-streaming RPC.
type ShuffleService_ConnectShuffleRoomServer interface {
	Send(*ShuffleEvent) error
	grpc.ServerStream
}

type connectShuffleRoomServer struct {
	grpc.ServerStream
}

func (x *connectShuffleRoomServer) Send(m *ShuffleEvent) error {
	return x.ServerStream.SendMsg(m)
}

func _ShuffleService_JoinShuffleRoom_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(JoinShuffleRoomRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShuffleServiceServer).JoinShuffleRoom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/JoinShuffleRoom"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShuffleServiceServer).JoinShuffleRoom(ctx, req.(*JoinShuffleRoomRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ShuffleService_IsReadyForShuffle_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IsReadyForShuffleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShuffleServiceServer).IsReadyForShuffle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/IsReadyForShuffle"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShuffleServiceServer).IsReadyForShuffle(ctx, req.(*IsReadyForShuffleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ShuffleService_ShuffleRound_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ShuffleRoundRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShuffleServiceServer).ShuffleRound(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/ShuffleRound"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShuffleServiceServer).ShuffleRound(ctx, req.(*ShuffleRoundRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ShuffleService_SignShuffleTx_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SignShuffleTxRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShuffleServiceServer).SignShuffleTx(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/SignShuffleTx"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShuffleServiceServer).SignShuffleTx(ctx, req.(*SignShuffleTxRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ShuffleService_ConnectShuffleRoom_Handler(srv any, stream grpc.ServerStream) error {
	m := new(ConnectShuffleRoomRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ShuffleServiceServer).ConnectShuffleRoom(m, &connectShuffleRoomServer{stream})
}

// ShuffleServiceDesc is the grpc.ServiceDesc for ShuffleService, built by
// hand in the shape protoc-gen-go-grpc emits into a *_grpc.pb.go file.
var ShuffleServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ShuffleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "JoinShuffleRoom", Handler: _ShuffleService_JoinShuffleRoom_Handler},
		{MethodName: "IsReadyForShuffle", Handler: _ShuffleService_IsReadyForShuffle_Handler},
		{MethodName: "ShuffleRound", Handler: _ShuffleService_ShuffleRound_Handler},
		{MethodName: "SignShuffleTx", Handler: _ShuffleService_SignShuffleTx_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ConnectShuffleRoom",
			Handler:       _ShuffleService_ConnectShuffleRoom_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "api/shuffle/v1/shuffle.proto",
}

func RegisterShuffleServiceServer(s grpc.ServiceRegistrar, srv ShuffleServiceServer) {
	s.RegisterService(&ShuffleServiceDesc, srv)
}

// ShuffleServiceClient is the client API for ShuffleService.
type ShuffleServiceClient interface {
	JoinShuffleRoom(ctx context.Context, in *JoinShuffleRoomRequest, opts ...grpc.CallOption) (*JoinShuffleRoomResponse, error)
	IsReadyForShuffle(ctx context.Context, in *IsReadyForShuffleRequest, opts ...grpc.CallOption) (*IsReadyForShuffleResponse, error)
	ConnectShuffleRoom(ctx context.Context, in *ConnectShuffleRoomRequest, opts ...grpc.CallOption) (ShuffleService_ConnectShuffleRoomClient, error)
	ShuffleRound(ctx context.Context, in *ShuffleRoundRequest, opts ...grpc.CallOption) (*ShuffleRoundResponse, error)
	SignShuffleTx(ctx context.Context, in *SignShuffleTxRequest, opts ...grpc.CallOption) (*SignShuffleTxResponse, error)
}

type shuffleServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewShuffleServiceClient(cc grpc.ClientConnInterface) ShuffleServiceClient {
	return &shuffleServiceClient{cc}
}

func (c *shuffleServiceClient) JoinShuffleRoom(ctx context.Context, in *JoinShuffleRoomRequest, opts ...grpc.CallOption) (*JoinShuffleRoomResponse, error) {
	out := new(JoinShuffleRoomResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/JoinShuffleRoom", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shuffleServiceClient) IsReadyForShuffle(ctx context.Context, in *IsReadyForShuffleRequest, opts ...grpc.CallOption) (*IsReadyForShuffleResponse, error) {
	out := new(IsReadyForShuffleResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/IsReadyForShuffle", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shuffleServiceClient) ShuffleRound(ctx context.Context, in *ShuffleRoundRequest, opts ...grpc.CallOption) (*ShuffleRoundResponse, error) {
	out := new(ShuffleRoundResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ShuffleRound", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shuffleServiceClient) SignShuffleTx(ctx context.Context, in *SignShuffleTxRequest, opts ...grpc.CallOption) (*SignShuffleTxResponse, error) {
	out := new(SignShuffleTxResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/SignShuffleTx", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ShuffleService_ConnectShuffleRoomClient is the client-side stream handle
// for the ConnectShuffleRoom server-streaming RPC.
type ShuffleService_ConnectShuffleRoomClient interface {
	Recv() (*ShuffleEvent, error)
	grpc.ClientStream
}

type connectShuffleRoomClient struct {
	grpc.ClientStream
}

func (x *connectShuffleRoomClient) Recv() (*ShuffleEvent, error) {
	m := new(ShuffleEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *shuffleServiceClient) ConnectShuffleRoom(ctx context.Context, in *ConnectShuffleRoomRequest, opts ...grpc.CallOption) (ShuffleService_ConnectShuffleRoomClient, error) {
	stream, err := c.cc.NewStream(ctx, &ShuffleServiceDesc.Streams[0], "/"+serviceName+"/ConnectShuffleRoom", opts...)
	if err != nil {
		return nil, err
	}
	x := &connectShuffleRoomClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
