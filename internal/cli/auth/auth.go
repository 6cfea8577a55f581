package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	service = "colyze-cli"
)

// ErrNoToken is returned when no token is stored for a server
var ErrNoToken = errors.New("not authenticated. Please run 'colyze login' first")

// TokenStore defines the interface for token storage operations
// This allows us to mock the keyring in tests
type TokenStore interface {
	SaveToken(serverURL, token string) error
	LoadToken(serverURL string) (string, error)
	DeleteToken(serverURL string) error
}

// getKeyringKey returns a unique key for storing tokens per server
func getKeyringKey(serverURL string) string {
	return fmt.Sprintf("token-%s", strings.TrimRight(serverURL, "/"))
}

// keyringStore implements TokenStore using the OS keyring
type keyringStore struct{}

// Default is the OS keychain/credential manager backed store
var Default TokenStore = keyringStore{}

// SaveToken persists the token securely in the OS keychain/credential manager
func (keyringStore) SaveToken(serverURL, token string) error {
	if err := keyring.Set(service, getKeyringKey(serverURL), token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken retrieves the token from the OS keychain/credential manager
func (keyringStore) LoadToken(serverURL string) (string, error) {
	token, err := keyring.Get(service, getKeyringKey(serverURL))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// DeleteToken removes the token from the OS keychain/credential manager
func (keyringStore) DeleteToken(serverURL string) error {
	if err := keyring.Delete(service, getKeyringKey(serverURL)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// MemoryStore keeps tokens for the lifetime of the process. Used when no OS
// keyring is available and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (m *MemoryStore) SaveToken(serverURL, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[getKeyringKey(serverURL)] = token
	return nil
}

func (m *MemoryStore) LoadToken(serverURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[getKeyringKey(serverURL)]
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

func (m *MemoryStore) DeleteToken(serverURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, getKeyringKey(serverURL))
	return nil
}

// Detect returns the OS keyring when it is usable, otherwise a memory store
func Detect() TokenStore {
	if _, err := keyring.Get(service, "availability-check"); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return NewMemoryStore()
	}
	return Default
}
