// Package credentials stores backend API tokens in the system keyring. An
// environment variable named in the backend's config entry takes precedence,
// which keeps headless machines and CI working without a keyring daemon.
package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/dapp-whisperer/terminalist/internal/config"
	"github.com/dapp-whisperer/terminalist/internal/utils"
)

// service is the keyring service name all terminalist secrets live under.
const service = "terminalist"

// Keyring is the minimal secret store surface. The system keyring satisfies
// it in production; tests swap in a map.
type Keyring interface {
	Get(account string) (string, error)
	Set(account, secret string) error
	Delete(account string) error
}

// systemKeyring backs Keyring with the OS keychain.
type systemKeyring struct{}

func (systemKeyring) Get(account string) (string, error) {
	return keyring.Get(service, account)
}

func (systemKeyring) Set(account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (systemKeyring) Delete(account string) error {
	return keyring.Delete(service, account)
}

// Manager resolves tokens for backend instances.
type Manager struct {
	ring Keyring
}

// NewManager returns a Manager backed by the system keyring.
func NewManager() *Manager {
	return &Manager{ring: systemKeyring{}}
}

// NewManagerWithKeyring returns a Manager over a custom secret store.
func NewManagerWithKeyring(ring Keyring) *Manager {
	return &Manager{ring: ring}
}

// Token returns the API token for a backend instance. Resolution order: the
// environment variable named by token_env, then the keyring entry under the
// instance name.
func (m *Manager) Token(b config.BackendConfig) (string, error) {
	if b.TokenEnv != "" {
		if v := strings.TrimSpace(os.Getenv(b.TokenEnv)); v != "" {
			utils.Debugf("token for %s taken from $%s", b.Name, b.TokenEnv)
			return v, nil
		}
	}

	secret, err := m.ring.Get(b.Name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", utils.ErrCredentialsNotFound(b.Kind, b.Name)
		}
		return "", fmt.Errorf("keyring lookup for %s failed: %w", b.Name, err)
	}
	return secret, nil
}

// SetToken stores a token for a backend instance name.
func (m *Manager) SetToken(name, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("refusing to store an empty token for %s", name)
	}
	return m.ring.Set(name, token)
}

// DeleteToken removes the stored token for a backend instance name.
func (m *Manager) DeleteToken(name string) error {
	err := m.ring.Delete(name)
	if err == keyring.ErrNotFound {
		return nil
	}
	return err
}

// PromptToken reads a token from the terminal without echoing it. Falls back
// to a plain line read when stdin is not a terminal (piped input).
func PromptToken(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
