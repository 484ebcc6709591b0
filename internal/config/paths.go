package config

import (
	"os"
	"path/filepath"
	"sort"
)

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "duwdu")
	}
	return ".duwdu"
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
