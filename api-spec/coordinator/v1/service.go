package coordinatorv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "coordinator.v1.CoordinatorService"

const (
	CoordinatorService_RegisterInput_FullMethodName      = "/" + serviceName + "/RegisterInput"
	CoordinatorService_RemoveInput_FullMethodName        = "/" + serviceName + "/RemoveInput"
	CoordinatorService_ConfirmConnection_FullMethodName  = "/" + serviceName + "/ConfirmConnection"
	CoordinatorService_ReadyToSign_FullMethodName        = "/" + serviceName + "/ReadyToSign"
	CoordinatorService_RegisterOutput_FullMethodName     = "/" + serviceName + "/RegisterOutput"
	CoordinatorService_ReissueCredentials_FullMethodName = "/" + serviceName + "/ReissueCredentials"
	CoordinatorService_SignTransaction_FullMethodName    = "/" + serviceName + "/SignTransaction"
	CoordinatorService_GetStatus_FullMethodName          = "/" + serviceName + "/GetStatus"
)

type CoordinatorServiceServer interface {
	RegisterInput(context.Context, *RegisterInputRequest) (*RegisterInputResponse, error)
	RemoveInput(context.Context, *RemoveInputRequest) (*RemoveInputResponse, error)
	ConfirmConnection(context.Context, *ConfirmConnectionRequest) (*ConfirmConnectionResponse, error)
	ReadyToSign(context.Context, *ReadyToSignRequest) (*ReadyToSignResponse, error)
	RegisterOutput(context.Context, *RegisterOutputRequest) (*RegisterOutputResponse, error)
	ReissueCredentials(context.Context, *ReissueCredentialsRequest) (*ReissueCredentialsResponse, error)
	SignTransaction(context.Context, *SignTransactionRequest) (*SignTransactionResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

// UnimplementedCoordinatorServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedCoordinatorServiceServer struct{}

func (UnimplementedCoordinatorServiceServer) RegisterInput(context.Context, *RegisterInputRequest) (*RegisterInputResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RegisterInput not implemented")
}
func (UnimplementedCoordinatorServiceServer) RemoveInput(context.Context, *RemoveInputRequest) (*RemoveInputResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RemoveInput not implemented")
}
func (UnimplementedCoordinatorServiceServer) ConfirmConnection(context.Context, *ConfirmConnectionRequest) (*ConfirmConnectionResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ConfirmConnection not implemented")
}
func (UnimplementedCoordinatorServiceServer) ReadyToSign(context.Context, *ReadyToSignRequest) (*ReadyToSignResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReadyToSign not implemented")
}
func (UnimplementedCoordinatorServiceServer) RegisterOutput(context.Context, *RegisterOutputRequest) (*RegisterOutputResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RegisterOutput not implemented")
}
func (UnimplementedCoordinatorServiceServer) ReissueCredentials(context.Context, *ReissueCredentialsRequest) (*ReissueCredentialsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReissueCredentials not implemented")
}
func (UnimplementedCoordinatorServiceServer) SignTransaction(context.Context, *SignTransactionRequest) (*SignTransactionResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SignTransaction not implemented")
}
func (UnimplementedCoordinatorServiceServer) GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}

func RegisterCoordinatorServiceServer(s grpc.ServiceRegistrar, srv CoordinatorServiceServer) {
	s.RegisterService(&CoordinatorService_ServiceDesc, srv)
}

// unaryHandler adapts a typed method of the server to a grpc method handler.
func unaryHandler[Req any, Res any](
	fullMethod string,
	call func(srv CoordinatorServiceServer, ctx context.Context, req *Req) (*Res, error),
) func(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	return func(
		srv interface{}, ctx context.Context, dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoordinatorServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CoordinatorServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var CoordinatorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CoordinatorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RegisterInput",
			Handler: unaryHandler(
				CoordinatorService_RegisterInput_FullMethodName,
				CoordinatorServiceServer.RegisterInput,
			),
		},
		{
			MethodName: "RemoveInput",
			Handler: unaryHandler(
				CoordinatorService_RemoveInput_FullMethodName,
				CoordinatorServiceServer.RemoveInput,
			),
		},
		{
			MethodName: "ConfirmConnection",
			Handler: unaryHandler(
				CoordinatorService_ConfirmConnection_FullMethodName,
				CoordinatorServiceServer.ConfirmConnection,
			),
		},
		{
			MethodName: "ReadyToSign",
			Handler: unaryHandler(
				CoordinatorService_ReadyToSign_FullMethodName,
				CoordinatorServiceServer.ReadyToSign,
			),
		},
		{
			MethodName: "RegisterOutput",
			Handler: unaryHandler(
				CoordinatorService_RegisterOutput_FullMethodName,
				CoordinatorServiceServer.RegisterOutput,
			),
		},
		{
			MethodName: "ReissueCredentials",
			Handler: unaryHandler(
				CoordinatorService_ReissueCredentials_FullMethodName,
				CoordinatorServiceServer.ReissueCredentials,
			),
		},
		{
			MethodName: "SignTransaction",
			Handler: unaryHandler(
				CoordinatorService_SignTransaction_FullMethodName,
				CoordinatorServiceServer.SignTransaction,
			),
		},
		{
			MethodName: "GetStatus",
			Handler: unaryHandler(
				CoordinatorService_GetStatus_FullMethodName,
				CoordinatorServiceServer.GetStatus,
			),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coordinator/v1/service.json",
}

type CoordinatorServiceClient interface {
	RegisterInput(ctx context.Context, in *RegisterInputRequest, opts ...grpc.CallOption) (*RegisterInputResponse, error)
	RemoveInput(ctx context.Context, in *RemoveInputRequest, opts ...grpc.CallOption) (*RemoveInputResponse, error)
	ConfirmConnection(ctx context.Context, in *ConfirmConnectionRequest, opts ...grpc.CallOption) (*ConfirmConnectionResponse, error)
	ReadyToSign(ctx context.Context, in *ReadyToSignRequest, opts ...grpc.CallOption) (*ReadyToSignResponse, error)
	RegisterOutput(ctx context.Context, in *RegisterOutputRequest, opts ...grpc.CallOption) (*RegisterOutputResponse, error)
	ReissueCredentials(ctx context.Context, in *ReissueCredentialsRequest, opts ...grpc.CallOption) (*ReissueCredentialsResponse, error)
	SignTransaction(ctx context.Context, in *SignTransactionRequest, opts ...grpc.CallOption) (*SignTransactionResponse, error)
	GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error)
}

type coordinatorServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCoordinatorServiceClient(cc grpc.ClientConnInterface) CoordinatorServiceClient {
	return &coordinatorServiceClient{cc}
}

func invoke[Res any](
	ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{},
	opts []grpc.CallOption,
) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorServiceClient) RegisterInput(ctx context.Context, in *RegisterInputRequest, opts ...grpc.CallOption) (*RegisterInputResponse, error) {
	return invoke[RegisterInputResponse](ctx, c.cc, CoordinatorService_RegisterInput_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) RemoveInput(ctx context.Context, in *RemoveInputRequest, opts ...grpc.CallOption) (*RemoveInputResponse, error) {
	return invoke[RemoveInputResponse](ctx, c.cc, CoordinatorService_RemoveInput_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) ConfirmConnection(ctx context.Context, in *ConfirmConnectionRequest, opts ...grpc.CallOption) (*ConfirmConnectionResponse, error) {
	return invoke[ConfirmConnectionResponse](ctx, c.cc, CoordinatorService_ConfirmConnection_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) ReadyToSign(ctx context.Context, in *ReadyToSignRequest, opts ...grpc.CallOption) (*ReadyToSignResponse, error) {
	return invoke[ReadyToSignResponse](ctx, c.cc, CoordinatorService_ReadyToSign_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) RegisterOutput(ctx context.Context, in *RegisterOutputRequest, opts ...grpc.CallOption) (*RegisterOutputResponse, error) {
	return invoke[RegisterOutputResponse](ctx, c.cc, CoordinatorService_RegisterOutput_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) ReissueCredentials(ctx context.Context, in *ReissueCredentialsRequest, opts ...grpc.CallOption) (*ReissueCredentialsResponse, error) {
	return invoke[ReissueCredentialsResponse](ctx, c.cc, CoordinatorService_ReissueCredentials_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) SignTransaction(ctx context.Context, in *SignTransactionRequest, opts ...grpc.CallOption) (*SignTransactionResponse, error) {
	return invoke[SignTransactionResponse](ctx, c.cc, CoordinatorService_SignTransaction_FullMethodName, in, opts)
}

func (c *coordinatorServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, CoordinatorService_GetStatus_FullMethodName, in, opts)
}
