package progress

import (
	"os"
	"strings"
	"sync"
)

// CredentialStore holds the account's access token
type CredentialStore interface {
	Token() (string, bool)
	SetToken(token string)
	Clear()
}

// MemoryCredentials keeps the token in process memory
type MemoryCredentials struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryCredentials creates an empty credential store
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{}
}

// Token returns the stored token
func (m *MemoryCredentials) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// SetToken stores token, trimmed
func (m *MemoryCredentials) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = strings.TrimSpace(token)
}

// Clear forgets the token
func (m *MemoryCredentials) Clear() {
	m.SetToken("")
}

// NewEnvCredentials seeds a memory store from the environment variable name
func NewEnvCredentials(name string) *MemoryCredentials {
	m := NewMemoryCredentials()
	m.SetToken(os.Getenv(name))
	return m
}
