package engine

// MaxResponseSize exposes the engine read limit for tests.
const MaxResponseSize = maxEngineResponseSize
