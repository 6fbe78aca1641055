// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// UserHomeDir returns the home directory of the current user
func UserHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		return home
	}
	return os.Getenv("HOME")
}

// ParsePathSetting expands a leading '~/', '$HOME' or '$VAR' and returns
// a cleaned absolute path
func ParsePathSetting(inPath string) string {
	if strings.HasPrefix(inPath, "$HOME") {
		inPath = UserHomeDir() + inPath[5:]
	} else if strings.HasPrefix(inPath, "~/") {
		inPath = UserHomeDir() + inPath[1:]
	}

	if strings.HasPrefix(inPath, "$") {
		end := strings.Index(inPath, string(os.PathSeparator))
		if end == -1 {
			end = len(inPath)
		}
		inPath = os.Getenv(inPath[1:end]) + inPath[end:]
	}
	if filepath.IsAbs(inPath) {
		return filepath.Clean(inPath)
	}

	p, err := filepath.Abs(inPath)
	if err == nil {
		return filepath.Clean(p)
	}
	return ""
}
