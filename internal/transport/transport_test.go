package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"tcpdriver/internal/sshtest"
	"tcpdriver/tunnel"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second, ReuseAddr: true}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestTCPDialer_WithReuseAddr(t *testing.T) {
	d := &TCPDialer{Timeout: time.Second, LocalPort: 4000}
	var rd ReuseAddrDialer = d
	c, ok := rd.WithReuseAddr(true).(*TCPDialer)
	if !ok {
		t.Fatal("WithReuseAddr did not return a *TCPDialer")
	}
	if !c.ReuseAddr {
		t.Error("WithReuseAddr(true) not applied to the copy")
	}
	if c.Timeout != d.Timeout || c.LocalPort != d.LocalPort {
		t.Errorf("copy = %+v, want fields of %+v", c, d)
	}
	if d.ReuseAddr {
		t.Error("WithReuseAddr changed the original dialer")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestListen_AcceptOne(t *testing.T) {
	ln, err := Listen(context.Background(), "127.0.0.1:0", true)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		conn.Write([]byte("peer")) //nolint:errcheck
		conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := AcceptOne(ctx, ln)
	if err != nil {
		t.Fatalf("AcceptOne: %v", err)
	}
	defer conn.Close()

	got, _ := io.ReadAll(conn)
	if string(got) != "peer" {
		t.Errorf("got %q, want %q", got, "peer")
	}
}

func TestAcceptOne_ContextCancel(t *testing.T) {
	ln, err := Listen(context.Background(), "127.0.0.1:0", false)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = AcceptOne(ctx, ln)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want DeadlineExceeded", err)
	}
}

func TestSSHDialer_Forward(t *testing.T) {
	gw := sshtest.Start(t)

	target, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := target.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		received <- string(b)
	}()

	d := NewSSHDialer(&tunnel.SSHConfig{
		User:    "tester",
		Host:    gw.Host,
		Port:    gw.Port,
		Signers: []ssh.Signer{gw.ClientSigner},
	}, nil)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, "tcp", target.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Write([]byte{0x01, 0x02, 0x03}) //nolint:errcheck
	conn.Close()

	select {
	case got := <-received:
		if got != "\x01\x02\x03" {
			t.Errorf("target got %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for forwarded data")
	}
}

func TestSSHDialer_CloseWithoutDial(t *testing.T) {
	d := NewSSHDialer(&tunnel.SSHConfig{Host: "127.0.0.1"}, nil)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
}
