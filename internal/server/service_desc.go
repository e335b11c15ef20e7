package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const extractorServiceName = "inspection.v1.Extractor"

// ExtractorServer is the inspection.v1.Extractor service. Messages are
// google.protobuf.Struct so clients need no generated stubs:
//
//	ExtractText  {pages: [string]}           -> {records: [{column: value}]}
//	ExtractFile  {path: string, force: bool} -> {run_id, deduplicated, pages, records, warnings}
//	GetRun       {run_id: string}            -> {run: {...}, records: [...]}
type ExtractorServer interface {
	ExtractText(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExtractFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterExtractorServer(s grpc.ServiceRegistrar, srv ExtractorServer) {
	s.RegisterService(&ExtractorServiceDesc, srv)
}

// ExtractorServiceDesc is registered with grpc.Server like a generated descriptor.
var ExtractorServiceDesc = grpc.ServiceDesc{
	ServiceName: extractorServiceName,
	HandlerType: (*ExtractorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractText", Handler: unaryHandler("ExtractText", ExtractorServer.ExtractText)},
		{MethodName: "ExtractFile", Handler: unaryHandler("ExtractFile", ExtractorServer.ExtractFile)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", ExtractorServer.GetRun)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inspection/v1/extractor.proto",
}

// FullMethod returns the wire name of a method, e.g. "/inspection.v1.Extractor/GetRun".
func FullMethod(method string) string {
	return "/" + extractorServiceName + "/" + method
}

type unaryMethod func(ExtractorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
