package util

import (
	"testing"
)

func TestResolveTCPAddr(t *testing.T) {
	tests := []struct {
		host    string
		port    uint16
		noDNS   bool
		want    string
		wantErr bool
	}{
		{"127.0.0.1", 80, true, "127.0.0.1:80", false},
		{"::1", 443, true, "[::1]:443", false},
		{"localhost", 9000, false, "", false},
		{"example.com", 80, true, "", true}, // hostname with noDNS
	}

	for _, tt := range tests {
		got, err := ResolveTCPAddr(tt.host, tt.port, tt.noDNS)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveTCPAddr(%q,%d,%v) err=%v wantErr=%v",
				tt.host, tt.port, tt.noDNS, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if got.Port != int(tt.port) {
			t.Errorf("port = %d, want %d", got.Port, tt.port)
		}
		if tt.want != "" && got.String() != tt.want {
			t.Errorf("ResolveTCPAddr(%q,%d,%v) = %q, want %q",
				tt.host, tt.port, tt.noDNS, got.String(), tt.want)
		}
	}
}

func TestFormatAddr(t *testing.T) {
	if got := FormatAddr("1.2.3.4", 22); got != "1.2.3.4:22" {
		t.Errorf("got %q, want %q", got, "1.2.3.4:22")
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port < 1 || port > 65535 {
		t.Errorf("port %d out of range", port)
	}
}
