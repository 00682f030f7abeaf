package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	BatchServiceName     = "rapidphotos.v1.BatchService"
	GetBatchStatusMethod = "/" + BatchServiceName + "/GetBatchStatus"
)

// BatchServiceServer is the server API of rapidphotos.v1.BatchService.
// Messages are google.protobuf.Struct values carrying the same JSON shapes
// as the HTTP API.
type BatchServiceServer interface {
	GetBatchStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func getBatchStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BatchServiceServer).GetBatchStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetBatchStatusMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BatchServiceServer).GetBatchStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var batchServiceDesc = grpc.ServiceDesc{
	ServiceName: BatchServiceName,
	HandlerType: (*BatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBatchStatus",
			Handler:    getBatchStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rapidphotos/v1/batch.proto",
}

// RegisterBatchServiceServer registers srv on s.
func RegisterBatchServiceServer(s grpc.ServiceRegistrar, srv BatchServiceServer) {
	s.RegisterService(&batchServiceDesc, srv)
}

// GetBatchStatus calls rapidphotos.v1.BatchService/GetBatchStatus over cc.
// The access token travels in the "access_token" metadata entry.
func GetBatchStatus(ctx context.Context, cc grpc.ClientConnInterface, batchID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"batchId": batchID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, GetBatchStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
