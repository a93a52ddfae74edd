// Package config loads kvlabel settings from viper and resolves the file
// locations they name.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ to the home directory and expands $VAR
// references. The home directory is left unexpanded when it cannot be found.
// An empty path stays empty so that unset settings remain unset.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// OutputFile returns explicit, expanded, when set and otherwise name inside
// the configured output directory.
func (s *Settings) OutputFile(explicit, name string) string {
	if explicit != "" {
		return ExpandPath(explicit)
	}
	return filepath.Join(s.OutputDir, name)
}
