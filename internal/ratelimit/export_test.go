package ratelimit

// Cleanup exposes the sweep body for tests.
func (l *FixedWindowLimiter) Cleanup() int {
	return l.cleanup()
}

// Running reports whether the sweep goroutine is active.
func (l *FixedWindowLimiter) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// EntryCount returns the number of tracked identifiers.
func (l *FixedWindowLimiter) EntryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RequestCount returns the requests recorded in identifier's current window.
func (l *FixedWindowLimiter) RequestCount(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[SanitizeIdentifier(identifier)]; ok {
		return e.count
	}
	return 0
}
