// devcrew-completion-server serves a completion backend over gRPC (stub by default).
// Example: go run ./cmd/devcrew-completion-server --addr=:50051 --provider=openai
// Then point agents at it with completion.provider: grpc and completion.address: localhost:50051.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"

	"github.com/ankittk/devcrew/internal/completion"
	completiongrpc "github.com/ankittk/devcrew/internal/completion/grpc"
	grpcgo "google.golang.org/grpc"
)

func main() {
	addr := flag.String("addr", ":50051", "gRPC listen address")
	provider := flag.String("provider", "stub", "backend: stub, openai, anthropic, gemini, subprocess")
	command := flag.String("command", "", "command for the subprocess backend")
	flag.Parse()

	backend, err := completion.New(context.Background(), completion.Options{Provider: *provider, Command: *command}, nil)
	if err != nil {
		slog.Error("completion backend", "provider", *provider, "err", err)
		os.Exit(1)
	}
	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		slog.Error("listen", "addr", *addr, "err", err)
		os.Exit(1)
	}
	srv := grpcgo.NewServer()
	completiongrpc.Register(srv, &completiongrpc.Server{Completer: backend})
	slog.Info("completion gRPC server listening", "addr", *addr, "backend", backend.Name())
	if err := srv.Serve(lis); err != nil {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}
