package kit

import (
	"context"
	"testing"
)

func TestContext_Transport_Default(t *testing.T) {
	if got := GetTransport(context.Background()); got != "http" {
		t.Fatalf("default transport: got %q, want http", got)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := context.Background()
	ctx = WithTransport(ctx, "mcp")
	ctx = WithRequestID(ctx, "req_1")
	ctx = WithTraceID(ctx, "abcd1234")
	ctx = WithRemoteAddr(ctx, "10.0.0.1:5555")

	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("transport: got %q", got)
	}
	if got := GetRequestID(ctx); got != "req_1" {
		t.Errorf("request id: got %q", got)
	}
	if got := GetTraceID(ctx); got != "abcd1234" {
		t.Errorf("trace id: got %q", got)
	}
	if got := GetRemoteAddr(ctx); got != "10.0.0.1:5555" {
		t.Errorf("remote addr: got %q", got)
	}
}

func TestContext_EmptyDefaults(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetTraceID(ctx) != "" || GetRemoteAddr(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}
}
