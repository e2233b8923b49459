package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// defaultKeyFiles are tried under ~/.ssh when no credential is configured.
var defaultKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

var errNoAuth = errors.New("no usable SSH credential; pass --ssh-key, --ssh-agent or --ssh-password")

// BuildAuthMethods returns the client auth methods for cfg.  In-memory
// signers and the key file share one public-key method, offered first;
// the agent and the password prompt follow.  With nothing configured
// the agent and the default key files are tried.
func BuildAuthMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	signers := append([]ssh.Signer(nil), cfg.Signers...)
	if cfg.KeyPath != "" {
		s, err := loadKey(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		signers = append(signers, s)
	}

	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if cfg.UseAgent {
		m, err := agentMethod()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}
	if cfg.PromptPass {
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			pass, err := readSecret("SSH password for " + cfg.User + "@" + cfg.Host + ": ")
			return string(pass), err
		}))
	}

	if len(methods) == 0 {
		methods = fallbackMethods()
	}
	if len(methods) == 0 {
		return nil, errNoAuth
	}
	return methods, nil
}

// loadKey parses a private key file, asking for the passphrase on the
// terminal when the key is encrypted.
func loadKey(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return signer, err
	}

	pass, err := readSecret("Passphrase for " + path + ": ")
	if err != nil {
		return nil, fmt.Errorf("passphrase: %w", err)
	}
	return ssh.ParsePrivateKeyWithPassphrase(pem, pass)
}

func agentMethod() (ssh.AuthMethod, error) {
	sock, ok := os.LookupEnv("SSH_AUTH_SOCK")
	if !ok || sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// readSecret prompts on stderr and reads from stdin without echo.
func readSecret(label string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, label)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(fd)
}

func fallbackMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if m, err := agentMethod(); err == nil {
		methods = append(methods, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return methods
	}
	var signers []ssh.Signer
	for _, name := range defaultKeyFiles {
		if s, err := loadKey(filepath.Join(home, ".ssh", name)); err == nil {
			signers = append(signers, s)
		}
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods
}

// ── host keys ────────────────────────────────────────────────────────

// hostKeyCallback picks the gateway key check: a pinned key, then
// known_hosts when strict checking is on, otherwise none.
func hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	switch {
	case cfg.HostKey != nil:
		return ssh.FixedHostKey(cfg.HostKey), nil
	case !cfg.StrictHostKey:
		//nolint:gosec // host key checking disabled on request
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := cfg.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", path, err)
	}
	return cb, nil
}
