package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"tcpdriver/tcpdriver"
	"tcpdriver/util"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSendMode_Run(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		got <- b
	}()

	var stats bytes.Buffer
	logger := util.NewLogger(0)
	m := &SendMode{
		Host:    "127.0.0.1",
		Port:    uint16(ln.Addr().(*net.TCPAddr).Port),
		Workers: 1,
		Options: []tcpdriver.Option{tcpdriver.WithLogger(logger)},
		Payload: func() ([]byte, error) { return []byte{0x01, 0x02, 0x03}, nil },
		Stats:   &stats,
		Logger:  logger,
	}
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case b := <-got:
		if !bytes.Equal(b, []byte{0x01, 0x02, 0x03}) {
			t.Errorf("peer got %x", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for peer")
	}
	if !strings.Contains(stats.String(), `"bytes_out": 3`) {
		t.Errorf("stats = %s", stats.String())
	}
}

func TestSendMode_PayloadError(t *testing.T) {
	m := &SendMode{
		Host:    "127.0.0.1",
		Port:    9,
		Payload: func() ([]byte, error) { return nil, errors.New("broken pipe") },
		Logger:  util.NewLogger(0),
	}
	err := m.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "reading payload") {
		t.Errorf("err = %v", err)
	}
}

func TestReceiveMode_StreamOutputFailure(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	logger := util.NewLogger(0)
	m := &ReceiveMode{
		Host:    "127.0.0.1",
		Port:    uint16(port),
		Workers: 1,
		Options: []tcpdriver.Option{tcpdriver.WithLogger(logger)},
		Async:   true,
		Out:     failingWriter{},
		Logger:  logger,
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	var c net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		c, err = net.Dial("tcp", util.FormatAddr("127.0.0.1", port))
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer c.Close()
	c.Write([]byte("data")) //nolint:errcheck

	select {
	case err := <-done:
		if err == nil || err.Error() != "disk full" {
			t.Errorf("Run = %v, want disk full", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop on output failure")
	}
}
