package sipctl

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestCanonicalizeNumber(t *testing.T) {
	cases := map[string]string{
		"(555) 123-4567":  "15551234567",
		"+1 555-123-4567": "15551234567",
		"555.123.4567":    "15551234567",
		"15551234567":     "15551234567",
	}
	for in, want := range cases {
		if got := CanonicalizeNumber(in); got != want {
			t.Errorf("CanonicalizeNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

// startStubServer accepts one connection, echoes back {"data":"ok"} for
// every netstring request it receives.
func startStubServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			if _, err := readNetstring(r); err != nil {
				return
			}
			if err := writeNetstring(conn, []byte(`{"data":"ok"}`)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestClientRegInfoRoundTrip(t *testing.T) {
	addr := startStubServer(t)
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	data, err := c.RegInfo()
	if err != nil {
		t.Fatalf("RegInfo: %v", err)
	}
	if string(data) != `"ok"` {
		t.Errorf("expected data \"ok\", got %s", data)
	}
}
