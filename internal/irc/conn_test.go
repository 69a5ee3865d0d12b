package irc

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second,
	}
	d := initialBackoff
	for i, w := range want {
		if d != w {
			t.Fatalf("attempt %d: backoff = %v, want %v", i, d, w)
		}
		d = nextBackoff(d)
	}
}

func TestConfigAddrDefaultsPort(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Server: "irc.example.org", TLS: true}, "irc.example.org:6697"},
		{Config{Server: "irc.example.org", TLS: false}, "irc.example.org:6667"},
		{Config{Server: "irc.example.org", Port: 6000, TLS: true}, "irc.example.org:6000"},
	}
	for _, tt := range tests {
		if got := tt.cfg.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateDisconnected.String() != "disconnected" {
		t.Errorf("unexpected disconnected name %q", StateDisconnected.String())
	}
	if StateReady.String() != "ready" {
		t.Errorf("unexpected ready name %q", StateReady.String())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewConn(Config{Server: "irc.example.org"}, NewWriteQueue(0), make(chan Event, 1))
	c.Close()
	c.Close()
	if !c.Closing() {
		t.Fatal("Closing() = false after Close")
	}
}
