// Package grpc provides gRPC server interceptors that validate actionable
// message tokens.
//
// Both interceptors read the "authorization" metadata entry, run the token
// through the same pipeline as the HTTP middleware and store the sender and
// action performer in the handler context.
//
// # Basic Usage
//
//	import (
//	    "log"
//	    "net"
//
//	    amtoken "github.com/actionablemessages/go-amtoken-middleware"
//	    amtokengrpc "github.com/actionablemessages/go-amtoken-middleware/integrations/grpc"
//	    "google.golang.org/grpc"
//	)
//
//	func main() {
//	    pipeline, err := amtoken.NewPipeline(amtoken.PipelineConfig{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    interceptor, err := amtokengrpc.New(
//	        amtokengrpc.WithValidator(pipeline),
//	        amtokengrpc.WithTarget("https://api.example.com"),
//	        amtokengrpc.WithExcludedMethods("/grpc.health.v1.Health/Check"),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    server := grpc.NewServer(
//	        grpc.UnaryInterceptor(interceptor.UnaryServerInterceptor()),
//	        grpc.StreamInterceptor(interceptor.StreamServerInterceptor()),
//	    )
//
//	    listener, _ := net.Listen("tcp", ":50051")
//	    server.Serve(listener)
//	}
//
// # Status Codes
//
// DefaultErrorHandler returns InvalidArgument for a malformed authorization
// entry, Unauthenticated for missing, malformed, expired or badly signed
// tokens and for identity provider failures, and PermissionDenied when the
// issuer, audience or appid does not match.
//
// # Retrieving the Result
//
//	func (s *server) Approve(ctx context.Context, req *pb.ApproveRequest) (*pb.ApproveReply, error) {
//	    success, err := amtokengrpc.GetSuccess(ctx)
//	    if err != nil {
//	        return nil, status.Error(codes.Internal, "not authenticated")
//	    }
//	    log.Println(success.Sender, success.ActionPerformer)
//	    ...
//	}
package grpc
