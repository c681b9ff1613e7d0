package utils

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/quotepulse/quotepulse/models"
)

const tokenCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
const tokenLength = 16

// TokenSettings is one subscriber's delivery configuration.  The push loops
// read it before every tick, so interval changes take effect on the next
// fire.
type TokenSettings struct {
	Pinned           []models.StockID
	ListInterval     time.Duration
	TrendInterval    time.Duration
	PlaybackInterval time.Duration
}

// IsPinned reports whether the subscriber pinned the given stock.
func (s TokenSettings) IsPinned(id models.StockID) bool {
	for _, pinned := range s.Pinned {
		if pinned == id {
			return true
		}
	}
	return false
}

// TokenRegistry is the read-mostly lookup of per-token settings the push
// loops consult.  Tokens without explicit settings get the defaults.
type TokenRegistry struct {
	mu       sync.RWMutex
	defaults TokenSettings
	entries  map[string]TokenSettings
	rand     *rand.Rand
}

func NewTokenRegistry(defaults TokenSettings) *TokenRegistry {
	return &TokenRegistry{
		defaults: defaults,
		entries:  map[string]TokenSettings{},
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Get returns the settings for token, falling back to the defaults.
func (r *TokenRegistry) Get(token string) TokenSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if settings, ok := r.entries[token]; ok {
		return settings
	}
	return r.defaults
}

// Set stores explicit settings for token.
func (r *TokenRegistry) Set(token string, settings TokenSettings) {
	r.mu.Lock()
	r.entries[token] = settings
	r.mu.Unlock()
}

// Contains reports whether token has explicit settings.
func (r *TokenRegistry) Contains(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[token]
	return ok
}

// Remove drops a token's settings.
func (r *TokenRegistry) Remove(token string) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// NewToken generates a random token that does not collide with an existing
// one.
func (r *TokenRegistry) NewToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		var b strings.Builder
		for i := 0; i < tokenLength; i++ {
			b.WriteByte(tokenCharset[r.rand.Intn(len(tokenCharset))])
		}
		token := b.String()
		if _, ok := r.entries[token]; !ok {
			return token
		}
	}
}
