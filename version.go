package warden

// Version is the engine release, overridden at build time with -ldflags.
var Version = "0.3.0-dev"
