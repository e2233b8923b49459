package core

import (
	"strings"
	"testing"

	"tcpdriver/config"
	"tcpdriver/internal/transport"
	"tcpdriver/util"
)

func baseConfig() *config.Config {
	cfg := config.New()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9000
	return cfg
}

// TestBuild_Send verifies that Build produces a SendMode for the
// default configuration.
func TestBuild_Send(t *testing.T) {
	mode, err := Build(baseConfig(), Streams{}, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	sm, ok := mode.(*SendMode)
	if !ok {
		t.Fatalf("expected *SendMode, got %T", mode)
	}
	if sm.Async || sm.Dialer != nil || sm.Backoff != nil || sm.Payload != nil {
		t.Errorf("unexpected defaults: %+v", sm)
	}
}

// TestBuild_Receive verifies Build produces a ReceiveMode for both
// listen modes.
func TestBuild_Receive(t *testing.T) {
	for _, m := range []config.Mode{config.ModeReceive, config.ModeAsyncReceive} {
		cfg := baseConfig()
		cfg.Mode = m

		mode, err := Build(cfg, Streams{}, util.NewLogger(0))
		if err != nil {
			t.Fatal(err)
		}
		rm, ok := mode.(*ReceiveMode)
		if !ok {
			t.Fatalf("%s: expected *ReceiveMode, got %T", m, mode)
		}
		if rm.Async != (m == config.ModeAsyncReceive) {
			t.Errorf("%s: Async = %v", m, rm.Async)
		}
	}
}

func TestBuild_Invalid(t *testing.T) {
	cfg := baseConfig()
	cfg.Host = ""
	if _, err := Build(cfg, Streams{}, util.NewLogger(0)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuild_TunnelAndRetries(t *testing.T) {
	cfg := baseConfig()
	cfg.TunnelEnabled = true
	cfg.TunnelHost = "gw"
	cfg.TunnelPort = 22
	cfg.Retries = 4

	mode, err := Build(cfg, Streams{}, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	sm := mode.(*SendMode)
	if _, ok := sm.Dialer.(*transport.SSHDialer); !ok {
		t.Errorf("Dialer = %T, want *transport.SSHDialer", sm.Dialer)
	}
	if sm.Backoff == nil || sm.Backoff.MaxAttempts != 4 {
		t.Errorf("Backoff = %+v", sm.Backoff)
	}
}

func TestPayloadSource(t *testing.T) {
	tests := []struct {
		name string
		data string
		st   Streams
		want string
		none bool
	}{
		{"data wins", "flag", Streams{In: strings.NewReader("stdin")}, "flag", false},
		{"stdin", "", Streams{In: strings.NewReader("stdin")}, "stdin", false},
		{"terminal", "", Streams{In: strings.NewReader("stdin"), StdinTTY: true}, "", true},
		{"no stdin", "", Streams{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Data = tt.data
			src := payloadSource(cfg, tt.st)
			if tt.none {
				if src != nil {
					t.Error("expected no payload source")
				}
				return
			}
			got, err := src()
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("payload = %q, want %q", got, tt.want)
			}
		})
	}
}
