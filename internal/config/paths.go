package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath anchors a relative runtime path at Root, the directory holding
// the config file. Without a Root the working directory is used. An empty raw
// falls back to fallback.
func (c *AppConfig) ResolvePath(raw, fallback string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = strings.TrimSpace(fallback)
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(c.rootDir(), target))
}

func (c *AppConfig) rootDir() string {
	if c != nil && c.Root != "" {
		return c.Root
	}
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return "."
}
