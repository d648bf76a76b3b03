package netcheck

import (
	"context"
	"net"
	"testing"
	"time"

	logAdapter "github.com/bft-labs/trackship/internal/adapters/log"
)

func TestHasInternet_Reachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	g := NewGate(ln.Addr().String(), time.Second, logAdapter.NewNoopLogger())
	if !g.HasInternet(context.Background()) {
		t.Error("HasInternet() = false, want true")
	}
}

func TestHasInternet_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	g := NewGate(addr, 200*time.Millisecond, logAdapter.NewNoopLogger())
	if g.HasInternet(context.Background()) {
		t.Error("HasInternet() = true, want false")
	}
}

func TestProbeAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://collector.example.com", "collector.example.com:443"},
		{"http://collector.example.com/prod", "collector.example.com:80"},
		{"http://127.0.0.1:8080", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		got, err := ProbeAddr(tt.in)
		if err != nil {
			t.Fatalf("ProbeAddr(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ProbeAddr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
