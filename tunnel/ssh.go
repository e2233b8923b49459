package tunnel

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	ncerr "tcpdriver/internal/errors"
)

const (
	defaultGatewayPort    = 22
	defaultGatewayTimeout = 30 * time.Second
)

// SSHConfig describes the gateway and the credentials to log in with.
type SSHConfig struct {
	User string
	Host string
	Port int

	KeyPath    string
	PromptPass bool
	UseAgent   bool
	Signers    []ssh.Signer // offered before KeyPath

	StrictHostKey bool
	KnownHosts    string
	HostKey       ssh.PublicKey // pinned gateway key; overrides KnownHosts

	ConnTimeout time.Duration
}

func (c *SSHConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// session is one logged-in gateway connection.  done closes when the
// gateway hangs up or the session is closed.
type session struct {
	client *ssh.Client
	done   chan struct{}
}

func (s *session) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// SSHTunnel implements [Tunnel] over an ssh.Client.
type SSHTunnel struct {
	cfg    *SSHConfig
	logger *zap.Logger

	mu   sync.Mutex
	sess *session
}

// NewSSHTunnel returns an unconnected tunnel for cfg.
func NewSSHTunnel(cfg *SSHConfig, logger *zap.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = defaultGatewayPort
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSHTunnel{cfg: cfg, logger: logger.With(zap.String("gateway", cfg.addr()))}
}

// Connect logs in to the gateway, replacing any earlier session.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	client, err := t.login(ctx)
	if err != nil {
		return err
	}
	sess := &session{client: client, done: make(chan struct{})}

	t.mu.Lock()
	old := t.sess
	t.sess = sess
	t.mu.Unlock()
	if old != nil {
		old.client.Close()
	}

	go func() {
		err := client.Wait()
		close(sess.done)
		t.logger.Debug("ssh: session ended", zap.Error(err))
	}()
	return nil
}

func (t *SSHTunnel) login(ctx context.Context) (*ssh.Client, error) {
	c := t.cfg
	auth, err := BuildAuthMethods(c)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", c.Host, c.Port, err)
	}
	hostKey, err := hostKeyCallback(c)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", c.Host, c.Port, err)
	}

	t.logger.Debug("ssh: dialing", zap.String("user", c.User))
	raw, err := (&net.Dialer{Timeout: c.ConnTimeout}).DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return nil, ncerr.Wrap("dial", c.addr(), err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(raw, c.addr(), &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.ConnTimeout,
	})
	if err != nil {
		raw.Close()
		return nil, ncerr.WrapSSH("handshake", c.Host, c.Port, err)
	}
	return ssh.NewClient(conn, chans, reqs), nil
}

// Dial opens a direct-tcpip channel to address through the gateway.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.Lock()
	sess := t.sess
	t.mu.Unlock()

	if sess == nil || !sess.alive() {
		return nil, ncerr.ErrTunnelClosed
	}
	t.logger.Debug("ssh: forwarding", zap.String("to", address))
	conn, err := sess.client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("tunnel dial", address, err)
	}
	return conn, nil
}

// Close ends the session, if any.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	sess := t.sess
	t.sess = nil
	t.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.client.Close()
}

// IsAlive reports whether a session is up.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess != nil && t.sess.alive()
}
