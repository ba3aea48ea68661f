package server

import "time"

// Timeouts exposes the http.Server timeouts for tests.
func (s *Server) Timeouts() (readHeader, read, write, idle time.Duration) {
	h := s.httpServer
	return h.ReadHeaderTimeout, h.ReadTimeout, h.WriteTimeout, h.IdleTimeout
}
