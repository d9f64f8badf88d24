package auth

import "sync"

// RevocationList is the process-wide set of tokens revoked by logout. It is
// constructed once at startup and handed to everything that needs it; it
// holds no persistence, so a restart forgets every revocation. Entries are
// never purged: one for an already expired token is a harmless no-op.
type RevocationList struct {
	mu      sync.Mutex
	revoked map[string]struct{}
}

func NewRevocationList() *RevocationList {
	return &RevocationList{revoked: make(map[string]struct{})}
}

// Add marks a token revoked. Idempotent.
func (l *RevocationList) Add(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[token] = struct{}{}
}

func (l *RevocationList) Contains(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.revoked[token]
	return ok
}

// Len reports the number of revoked tokens, for metrics.
func (l *RevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.revoked)
}
