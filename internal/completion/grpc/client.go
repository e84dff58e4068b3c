package grpc

import (
	"context"
	"errors"

	"github.com/ankittk/devcrew/internal/completion"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a completion.Completer that calls a remote Completion server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr. Without options the connection is plaintext.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Dialer adapts Dial to completion.Dialer.
func Dialer(addr string) (completion.Completer, error) {
	return Dial(addr)
}

// Name returns "grpc".
func (c *Client) Name() string { return "grpc" }

// Complete sends req to the server and returns its text.
func (c *Client) Complete(ctx context.Context, req completion.Request) (string, error) {
	in, err := requestToStruct(req)
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, completeMethod, in, out); err != nil {
		return "", err
	}
	text := out.GetFields()["text"].GetStringValue()
	if text == "" {
		return "", errors.New("completion server returned no text")
	}
	return text, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }
