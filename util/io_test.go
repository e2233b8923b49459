package util

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadAllInto(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD}, DefaultBufSize) // spans several chunks
	dst := []byte("stale contents")

	n, err := ReadAllInto(bytes.NewReader(payload), &dst)
	if err != nil {
		t.Fatalf("ReadAllInto: %v", err)
	}
	if n != len(payload) {
		t.Errorf("n = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(dst, payload) {
		t.Error("content mismatch")
	}
}

func TestReadAllInto_Empty(t *testing.T) {
	dst := []byte{1, 2, 3}
	n, err := ReadAllInto(bytes.NewReader(nil), &dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(dst) != 0 {
		t.Errorf("expected empty result, got n=%d len=%d", n, len(dst))
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadAllInto_Error(t *testing.T) {
	boom := errors.New("boom")
	var dst []byte

	n, err := ReadAllInto(&failingReader{data: []byte("partial"), err: boom}, &dst)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n != 7 || string(dst) != "partial" {
		t.Errorf("got n=%d dst=%q", n, dst)
	}
	if errors.Is(err, io.EOF) {
		t.Error("should not be EOF")
	}
}

func TestBufPool_RoundTrip(t *testing.T) {
	buf := GetBuf()
	if buf == nil {
		t.Fatal("GetBuf returned nil")
	}
	if len(*buf) != DefaultBufSize {
		t.Errorf("buffer size = %d, want %d", len(*buf), DefaultBufSize)
	}
	PutBuf(buf)
}

func TestPutBuf_Nil(t *testing.T) {
	PutBuf(nil)
}
