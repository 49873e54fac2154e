package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func serve(t *testing.T, in string, register func(*Server)) []Response {
	t.Helper()
	var out bytes.Buffer
	server := NewServer("1", strings.NewReader(in), &out, nil)
	register(server)
	if err := server.Serve(context.Background()); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestServeDispatchesAndResponds(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	responses := serve(t, in, func(s *Server) {
		s.Register("ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
			return map[string]string{"pong": "ok"}, nil
		})
	})
	if len(responses) != 1 || responses[0].Error != nil {
		t.Fatalf("responses = %+v", responses)
	}
}

func TestServePreservesRequestOrder(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"step"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"step"}` + "\n" +
		`{"jsonrpc":"2.0","id":3,"method":"step"}` + "\n"
	seq := 0
	responses := serve(t, in, func(s *Server) {
		s.Register("step", func(ctx context.Context, params json.RawMessage) (any, *Error) {
			seq++
			return seq, nil
		})
	})
	if len(responses) != 3 {
		t.Fatalf("got %d responses", len(responses))
	}
	for i, resp := range responses {
		want := string(rune('1' + i))
		if string(resp.ID) != want {
			t.Fatalf("response %d has id %s, want %s", i, resp.ID, want)
		}
	}
}

func TestServeRejectsUnknownMethod(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":7,"method":"nope"}` + "\n"
	responses := serve(t, in, func(s *Server) {})
	if len(responses) != 1 || responses[0].Error == nil {
		t.Fatalf("responses = %+v", responses)
	}
	if !strings.Contains(responses[0].Error.Message, "method not found") {
		t.Fatalf("error = %+v", responses[0].Error)
	}
}

func TestServeRejectsIncompatibleAPIVersion(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"ping","api_version":"999"}` + "\n"
	responses := serve(t, in, func(s *Server) {
		s.Register("ping", func(ctx context.Context, params json.RawMessage) (any, *Error) {
			return "ok", nil
		})
	})
	if len(responses) != 1 || responses[0].Error == nil {
		t.Fatalf("responses = %+v", responses)
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	in := `{"jsonrpc":"2.0","method":"fire"}` + "\n"
	called := false
	responses := serve(t, in, func(s *Server) {
		s.Register("fire", func(ctx context.Context, params json.RawMessage) (any, *Error) {
			called = true
			return nil, nil
		})
	})
	if !called {
		t.Fatal("handler not invoked")
	}
	if len(responses) != 0 {
		t.Fatalf("unexpected responses: %+v", responses)
	}
}
