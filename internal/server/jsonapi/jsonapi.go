// Package jsonapi registers a JSON codec with gRPC and builds unary method
// descriptors from plain Go handler funcs, so services are served without
// generated bindings. Clients select the codec with the
// "application/grpc+json" content subtype.
package jsonapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// CodecName is the gRPC content subtype served by jsonapi services.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return CodecName }

// HandlerType is the service handler type for jsonapi service descriptors.
// Handlers close over their dependencies, so no interface contract is needed.
var HandlerType = (*interface{})(nil)

// Method returns a unary method descriptor for fn. The full method name
// ("/" + service + "/" + name) is what interceptors and audit mapping see.
func Method[Req, Resp any](service, name string, fn func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, "malformed request")
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(ctx, req.(*Req))
			})
		},
	}
}
