package utils

import "path/filepath"

// ResolvePath makes a path from the configuration file relative to the
// directory of that file. Empty paths stay empty.
func ResolvePath(path, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
