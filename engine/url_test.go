package engine

import (
	"strings"
	"testing"
)

func TestBuildURLBasic(t *testing.T) {
	got, err := BuildURL("http://example.com", "", "", nil, 1700000000, false)
	if err != nil {
		t.Fatalf("BuildURL: %v", err)
	}
	want := "ws://example.com/socket.io/?EIO=4&transport=websocket&t=1700000000"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildURLForceTLS(t *testing.T) {
	got, err := BuildURL("ws://example.com", "", "", nil, 1, true)
	if err != nil {
		t.Fatalf("BuildURL: %v", err)
	}
	if !strings.HasPrefix(got, "wss://") {
		t.Errorf("expected wss:// scheme, got %q", got)
	}
}

func TestBuildURLWithSidAndQuery(t *testing.T) {
	got, err := BuildURL("http://example.com", "", "abc123", map[string]string{"room": "a b"}, 1, false)
	if err != nil {
		t.Fatalf("BuildURL: %v", err)
	}
	if !strings.Contains(got, "sid=abc123") {
		t.Errorf("expected sid in %q", got)
	}
	if !strings.Contains(got, "room=a%20b") {
		t.Errorf("expected percent-encoded query in %q", got)
	}
}

func TestBuildURLIPv6Bracketed(t *testing.T) {
	got, err := BuildURL("http://[::1]:8080", "", "", nil, 1, false)
	if err != nil {
		t.Fatalf("BuildURL: %v", err)
	}
	if !strings.HasPrefix(got, "ws://[::1]:8080/") {
		t.Errorf("expected bracketed IPv6 host, got %q", got)
	}
}

func TestPercentEncodeAllButAlphanumeric(t *testing.T) {
	got := percentEncode("a-b_c.d~e f")
	want := "a%2Db%5Fc%2Ed%7Ee%20f"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
