// Package sshd provisions the restricted OS accounts agents tunnel through.
package sshd

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/system"
	"github.com/demos-sh/demos/validation"
	"golang.org/x/crypto/ssh"
)

var dropInTemplate = template.Must(template.New("dropin").Parse(`Match User {{ . }}
    AllowTcpForwarding yes
    ForceCommand /bin/false
    PasswordAuthentication no
`))

type Options struct {
	DropInDir     string
	HomeRoot      string
	ReloadCommand string
	Excluded      []string
}

// Provisioner creates and removes per-user accounts, sshd drop-ins and
// authorized keys. Provision is not idempotent: useradd fails for an
// existing account and that error is returned.
type Provisioner struct {
	runner system.Runner
	opts   Options
}

func NewProvisioner(runner system.Runner, opts Options) *Provisioner {
	if opts.HomeRoot == "" {
		opts.HomeRoot = "/home"
	}
	if opts.ReloadCommand == "" {
		opts.ReloadCommand = "service ssh reload"
	}
	return &Provisioner{runner: runner, opts: opts}
}

func (p *Provisioner) DropInPath(username string) string {
	return filepath.Join(p.opts.DropInDir, username+".conf")
}

func (p *Provisioner) SSHDir(username string) string {
	return filepath.Join(p.opts.HomeRoot, username, ".ssh")
}

func (p *Provisioner) AuthorizedKeysPath(username string) string {
	return filepath.Join(p.SSHDir(username), "authorized_keys")
}

// Skips reports whether username is on the exclusion list and must never be touched.
func (p *Provisioner) Skips(username string) bool {
	return validation.IsExcluded(username, p.opts.Excluded)
}

// Provision creates the account with no usable password, its ~/.ssh
// directory and a drop-in that only allows port forwarding, then reloads sshd.
func (p *Provisioner) Provision(ctx context.Context, username string) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	if p.Skips(username) {
		slog.Debug("Skipping excluded account", "layer", "sshd", "operation", "provision", "username", username)
		return nil
	}

	if _, err := p.runner.Run(ctx, "useradd", "-m", "-p", "!", username); err != nil {
		return fmt.Errorf("failed to create account %s: %w", username, err)
	}

	if err := p.ensureSSHDir(ctx, username); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := dropInTemplate.Execute(&buf, username); err != nil {
		return fmt.Errorf("failed to render sshd drop-in: %w", err)
	}
	if err := os.MkdirAll(p.opts.DropInDir, 0o755); err != nil {
		return fmt.Errorf("failed to create drop-in directory: %w", err)
	}
	if err := system.WriteFileAtomic(p.DropInPath(username), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write sshd drop-in for %s: %w", username, err)
	}

	if _, err := system.RunLine(ctx, p.runner, p.opts.ReloadCommand); err != nil {
		return fmt.Errorf("failed to reload sshd: %w", err)
	}

	slog.Info("Account provisioned", "layer", "sshd", "username", username)
	return nil
}

// Deprovision removes the account with its home directory and the drop-in, then reloads sshd.
func (p *Provisioner) Deprovision(ctx context.Context, username string) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	if p.Skips(username) {
		slog.Debug("Skipping excluded account", "layer", "sshd", "operation", "deprovision", "username", username)
		return nil
	}

	if _, err := p.runner.Run(ctx, "userdel", "-r", username); err != nil {
		return fmt.Errorf("failed to remove account %s: %w", username, err)
	}

	if err := os.Remove(p.DropInPath(username)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove sshd drop-in for %s: %w", username, err)
	}

	if _, err := system.RunLine(ctx, p.runner, p.opts.ReloadCommand); err != nil {
		return fmt.Errorf("failed to reload sshd: %w", err)
	}

	slog.Info("Account deprovisioned", "layer", "sshd", "username", username)
	return nil
}

// IssueKey generates an ed25519 key pair, installs the public half as the
// account's only authorized key and returns the private half in OpenSSH PEM form.
func (p *Provisioner) IssueKey(ctx context.Context, username string) ([]byte, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if p.Skips(username) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSSHAccount, username)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "demos-"+username)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := p.ensureSSHDir(ctx, username); err != nil {
		return nil, err
	}
	if err := p.writeAuthorizedKeys(ctx, username, ssh.MarshalAuthorizedKey(sshPub)); err != nil {
		return nil, err
	}

	slog.Info("Key issued",
		"layer", "sshd",
		"username", username,
		"fingerprint", ssh.FingerprintSHA256(sshPub))
	return pem.EncodeToMemory(block), nil
}

// RevokeKey empties the account's authorized keys. A missing file is not an error.
func (p *Provisioner) RevokeKey(ctx context.Context, username string) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	if p.Skips(username) {
		return nil
	}
	if _, err := os.Stat(p.AuthorizedKeysPath(username)); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := p.writeAuthorizedKeys(ctx, username, nil); err != nil {
		return err
	}
	slog.Info("Key revoked", "layer", "sshd", "username", username)
	return nil
}

func (p *Provisioner) ensureSSHDir(ctx context.Context, username string) error {
	dir := p.SSHDir(username)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dir, err)
	}
	if _, err := p.runner.Run(ctx, "chown", username+":"+username, dir); err != nil {
		return fmt.Errorf("failed to chown %s: %w", dir, err)
	}
	return nil
}

func (p *Provisioner) writeAuthorizedKeys(ctx context.Context, username string, content []byte) error {
	path := p.AuthorizedKeysPath(username)
	if err := system.WriteFileAtomic(path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if _, err := p.runner.Run(ctx, "chown", username+":"+username, path); err != nil {
		return fmt.Errorf("failed to chown %s: %w", path, err)
	}
	return nil
}

// checkUsername guards the shell arguments and paths built from username.
func checkUsername(username string) error {
	if username == "" || username[0] == '-' || filepath.Base(username) != username || username == "." || username == ".." {
		return fmt.Errorf("invalid username %q", username)
	}
	return nil
}
