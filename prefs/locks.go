package prefs

import "sync"

// guildLocks hands out one writer mutex per guild. Entries are dropped once
// no writer holds or waits on them.
type guildLocks struct {
	mu    sync.Mutex
	locks map[string]*guildLock
}

type guildLock struct {
	mu   sync.Mutex
	refs int
}

func newGuildLocks() *guildLocks {
	return &guildLocks{locks: make(map[string]*guildLock)}
}

// lock blocks until the caller is the only writer for guildID and returns
// the matching unlock.
func (g *guildLocks) lock(guildID string) func() {
	g.mu.Lock()
	l := g.locks[guildID]
	if l == nil {
		l = &guildLock{}
		g.locks[guildID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, guildID)
		}
		g.mu.Unlock()
	}
}
