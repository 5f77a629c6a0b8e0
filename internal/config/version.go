package config

// Version is the paramkeep binary version.
// Set at build time via: -ldflags "-X github.com/paramkeep/paramkeep/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
