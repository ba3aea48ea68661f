package bridge

// RawPath exposes target path recovery for tests.
var RawPath = rawPath
