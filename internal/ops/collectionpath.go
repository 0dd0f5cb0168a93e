package ops

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
)

// CollectionExt is the extension every collection file must carry.
const CollectionExt = ".json"

// ExportsDir returns ~/.murmur/exports, the one directory collection files
// may always be written to and read from.
func ExportsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, ".murmur", "exports"), nil
}

// exportTarget returns the absolute file an export writes to. An empty path
// picks <key>-<timestamp>.json in ExportsDir.
func exportTarget(cfg *config.Config, path, key string, now time.Time) (string, error) {
	if path == "" {
		dir, err := ExportsDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, collectionFileName(key, now))
	}
	return checkCollectionPath(cfg, path)
}

// importSource returns the absolute file an import reads from.
func importSource(cfg *config.Config, path string) (string, error) {
	if path == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	abs, err := checkCollectionPath(cfg, path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return "", errors.NewFileNotFound(path)
	}
	return abs, nil
}

// collectionFileName escapes the storage key the same way kvfile names its
// files, so keys with separators stay a single path component.
func collectionFileName(key string, now time.Time) string {
	return url.PathEscape(key) + "-" + now.Format("2006-01-02T150405") + CollectionExt
}

// checkCollectionPath refuses ".." components, other extensions and
// symlinked files. Unless cfg.AllowUnsafePaths is set, the file must also sit
// directly in ExportsDir or an allowed_paths entry: nested directories could
// be swapped for symlinks between this check and the open.
func checkCollectionPath(cfg *config.Config, path string) (string, error) {
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	if filepath.Ext(path) != CollectionExt {
		return "", errors.NewInvalidRequest("path must have " + CollectionExt + " extension")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		dirs, err := collectionDirs(cfg)
		if err != nil {
			return "", err
		}
		parent := filepath.Dir(abs)
		if !slices.Contains(dirs, parent) {
			return "", errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
		}
		if isSymlink(parent) {
			return "", errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if isSymlink(abs) {
		return "", errors.NewInvalidRequest("path must not be a symlink")
	}
	return abs, nil
}

// collectionDirs lists ExportsDir and the absolute allowed_paths entries.
// A symlinked entry stands for its target.
func collectionDirs(cfg *config.Config) ([]string, error) {
	exports, err := ExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{exports}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if !filepath.IsAbs(p) {
				continue
			}
			p = filepath.Clean(p)
			if isSymlink(p) {
				resolved, err := filepath.EvalSymlinks(p)
				if err != nil {
					return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
				}
				p = resolved
			}
			dirs = append(dirs, p)
		}
	}
	return dirs, nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}
