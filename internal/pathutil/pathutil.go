package pathutil

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand resolves environment variables and "~/" home shortcuts.
func Expand(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := resolveHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(expanded, "~"), "/"))
	}

	return filepath.Clean(expanded), nil
}

func resolveHomeDir() (string, error) {
	candidates := []func() string{
		func() string {
			home, _ := os.UserHomeDir()
			return home
		},
		func() string {
			if current, err := user.Current(); err == nil {
				return current.HomeDir
			}
			return ""
		},
	}
	for _, candidate := range candidates {
		if home := strings.TrimSpace(candidate()); isResolvedHome(home) {
			return home, nil
		}
	}
	return "", fmt.Errorf("HOME is not set or not fully resolved: %q", os.Getenv("HOME"))
}

func isResolvedHome(home string) bool {
	return home != "" && home != "~" && !strings.HasPrefix(home, "~/")
}

// Normalize makes path absolute against base, cleans it and resolves symlinks on the
// longest prefix that exists on disk. The file itself does not need to exist.
func Normalize(path, base string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && base != "" {
		p = filepath.Join(base, p)
	}
	return resolveExisting(filepath.Clean(p))
}

func resolveExisting(p string) string {
	var missing []string
	cur := p
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

// IsWithin reports whether path equals root or lies beneath it. Both are compared lexically.
func IsWithin(path, root string) bool {
	if path == "" || root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Rebase rewrites path, which must lie under fromRoot, to the same relative location under toRoot.
func Rebase(path, fromRoot, toRoot string) (string, error) {
	if !IsWithin(path, fromRoot) {
		return "", fmt.Errorf("path %s is not under %s", path, fromRoot)
	}
	rel, err := filepath.Rel(fromRoot, path)
	if err != nil {
		return "", err
	}
	return filepath.Join(toRoot, rel), nil
}
