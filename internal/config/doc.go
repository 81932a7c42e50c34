// Package config loads, normalizes, and validates the vjcap TOML
// configuration. Defaults follow XDG-ish locations under the user's home;
// provider credentials may be supplied via the environment instead of the
// config file.
package config
