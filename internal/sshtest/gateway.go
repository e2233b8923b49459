// Package sshtest runs an in-process SSH gateway that accepts one known
// client key and serves "direct-tcpip" forwarding, for tests that need
// a real tunnel on loopback.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Gateway is a running test SSH server.
type Gateway struct {
	Host         string
	Port         int
	ClientSigner ssh.Signer
	HostKey      ssh.PublicKey

	clientKey ed25519.PrivateKey
	ln        net.Listener
	wg        sync.WaitGroup
}

// Start launches a gateway on 127.0.0.1 and stops it when the test ends.
func Start(t testing.TB) *Gateway {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatal(err)
	}
	_, clientPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	clientSigner, err := ssh.NewSignerFromKey(clientPriv)
	if err != nil {
		t.Fatal(err)
	}

	authorized := string(clientSigner.PublicKey().Marshal())
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == authorized {
				return nil, nil
			}
			return nil, ssh.ErrNoAuth
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	g := &Gateway{
		Host:         "127.0.0.1",
		Port:         ln.Addr().(*net.TCPAddr).Port,
		ClientSigner: clientSigner,
		HostKey:      hostSigner.PublicKey(),
		clientKey:    clientPriv,
		ln:           ln,
	}
	g.wg.Add(1)
	go g.serve(cfg)

	t.Cleanup(func() {
		ln.Close()
		g.wg.Wait()
	})
	return g
}

// WriteClientKey stores the client private key as an OpenSSH PEM file
// in dir and returns its path.
func (g *Gateway) WriteClientKey(t testing.TB, dir string) string {
	t.Helper()
	block, err := ssh.MarshalPrivateKey(g.clientKey, "sshtest")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteKnownHosts stores a known_hosts file trusting the gateway's host
// key and returns its path.
func (g *Gateway) WriteKnownHosts(t testing.TB, dir string) string {
	t.Helper()
	addr := net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, g.HostKey)
	path := filepath.Join(dir, "known_hosts")
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func (g *Gateway) serve(cfg *ssh.ServerConfig) {
	defer g.wg.Done()
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			return
		}
		go g.handle(conn, cfg)
	}
}

func (g *Gateway) handle(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "direct-tcpip" {
			nc.Reject(ssh.UnknownChannelType, "only direct-tcpip is served") //nolint:errcheck
			continue
		}
		go forward(nc)
	}
}

// directTCPIP is the RFC 4254 §7.2 channel-open payload.
type directTCPIP struct {
	Host     string
	Port     uint32
	OrigHost string
	OrigPort uint32
}

func forward(nc ssh.NewChannel) {
	var req directTCPIP
	if err := ssh.Unmarshal(nc.ExtraData(), &req); err != nil {
		nc.Reject(ssh.ConnectionFailed, "bad payload") //nolint:errcheck
		return
	}
	target, err := net.Dial("tcp", net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port))))
	if err != nil {
		nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
		return
	}
	ch, chReqs, err := nc.Accept()
	if err != nil {
		target.Close()
		return
	}
	go ssh.DiscardRequests(chReqs)

	done := make(chan struct{})
	go func() {
		io.Copy(ch, target) //nolint:errcheck
		ch.CloseWrite()     //nolint:errcheck
		close(done)
	}()
	io.Copy(target, ch) //nolint:errcheck
	if tc, ok := target.(*net.TCPConn); ok {
		tc.CloseWrite() //nolint:errcheck
	}
	<-done
	ch.Close()
	target.Close()
}
