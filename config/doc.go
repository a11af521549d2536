// Package config loads agent variant catalogs and runtime tuning settings
// from YAML. Catalogs are validated at load time: every agent must declare a
// non-blank "default" variant, so a misconfigured catalog fails fast instead
// of silently degrading at classification time. Reload happens by loading
// again and invalidating the classification engine's catalog cache.
package config
