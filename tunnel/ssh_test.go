package tunnel

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "tcpdriver/internal/errors"
	"tcpdriver/internal/sshtest"
)

func TestSSHTunnel_DialThroughGateway(t *testing.T) {
	gw := sshtest.Start(t)
	dir := t.TempDir()

	target, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()
	go func() {
		conn, err := target.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("via gateway")) //nolint:errcheck
	}()

	tun := NewSSHTunnel(&SSHConfig{
		User:          "tester",
		Host:          gw.Host,
		Port:          gw.Port,
		Signers:       []ssh.Signer{gw.ClientSigner},
		StrictHostKey: true,
		KnownHosts:    gw.WriteKnownHosts(t, dir),
		ConnTimeout:   2 * time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tun.Close()
	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive after Connect")
	}

	conn, err := tun.Dial(ctx, "tcp", target.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "via gateway" {
		t.Errorf("got %q, want %q", got, "via gateway")
	}
}

func TestSSHTunnel_DialBeforeConnect(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "127.0.0.1"}, nil)
	_, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1")
	if !errors.Is(err, ncerr.ErrTunnelClosed) {
		t.Errorf("got %v, want ErrTunnelClosed", err)
	}
}

func TestSSHTunnel_CloseIdempotent(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "127.0.0.1"}, nil)
	if err := tun.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tun.Close(); err != nil {
		t.Fatal(err)
	}
	if tun.IsAlive() {
		t.Error("closed tunnel should not be alive")
	}
}

func TestSSHTunnel_PinnedHostKey(t *testing.T) {
	gw := sshtest.Start(t)
	other := sshtest.Start(t)

	tests := []struct {
		name    string
		hostKey ssh.PublicKey
		wantErr bool
	}{
		{"matching", gw.HostKey, false},
		{"mismatch", other.HostKey, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tun := NewSSHTunnel(&SSHConfig{
				User:        "tester",
				Host:        gw.Host,
				Port:        gw.Port,
				Signers:     []ssh.Signer{gw.ClientSigner},
				HostKey:     tt.hostKey,
				ConnTimeout: 2 * time.Second,
			}, nil)
			defer tun.Close()

			err := tun.Connect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Connect err = %v, wantErr %v", err, tt.wantErr)
			}
			var sshErr *ncerr.SSHError
			if tt.wantErr && !errors.As(err, &sshErr) {
				t.Errorf("err = %T, want *SSHError", err)
			}
			if tun.IsAlive() == tt.wantErr {
				t.Errorf("IsAlive = %v", tun.IsAlive())
			}
		})
	}
}

func TestSSHTunnel_CloseEndsSession(t *testing.T) {
	gw := sshtest.Start(t)
	tun := NewSSHTunnel(&SSHConfig{
		User:        "tester",
		Host:        gw.Host,
		Port:        gw.Port,
		Signers:     []ssh.Signer{gw.ClientSigner},
		HostKey:     gw.HostKey,
		ConnTimeout: 2 * time.Second,
	}, nil)

	if err := tun.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := tun.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tun.IsAlive() {
		t.Error("alive after Close")
	}
	if _, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1"); !errors.Is(err, ncerr.ErrTunnelClosed) {
		t.Errorf("Dial after Close: %v, want ErrTunnelClosed", err)
	}
}
