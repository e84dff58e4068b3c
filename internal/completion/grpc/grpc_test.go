package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/ankittk/devcrew/internal/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestServer_nilCompleter_returnsError(t *testing.T) {
	srv := &Server{}
	in, err := structpb.NewStruct(map[string]any{"prompt": "x"})
	require.NoError(t, err)
	_, err = srv.Complete(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestServer_emptyPrompt(t *testing.T) {
	srv := &Server{Completer: completion.Stub{}}
	_, err := srv.Complete(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestConvert_roundTrip(t *testing.T) {
	for _, temp := range []*float64{nil, ptr(0), ptr(0.5)} {
		req := completion.Request{Model: "m", System: "s", Prompt: "p", MaxTokens: 300, Temperature: temp}
		s, err := requestToStruct(req)
		require.NoError(t, err)
		assert.Equal(t, req, structToRequest(s))
	}
}

func TestClientServer_bufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, &Server{Completer: completion.Stub{Reply: "remote reply"}})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, "grpc", client.Name())
	out, err := client.Complete(context.Background(), completion.Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "remote reply", out)

	_, err = client.Complete(context.Background(), completion.Request{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func ptr(v float64) *float64 { return &v }
