// Package configutil reads json5 configuration files with optional local overrides.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/afero"
	"github.com/titanous/json5"
)

// localName turns "dir/edupage.json5" into "dir/edupage.local.json5".
func localName(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readFile(fs afero.Fs, name string) ([]byte, bool, error) {
	contents, err := afero.ReadFile(fs, name)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return contents, true, nil
}

// ReadConfig reads name from the OS filesystem, see ReadConfigFs.
func ReadConfig[T any](name string) (T, error) {
	return ReadConfigFs[T](afero.NewOsFs(), name)
}

// ReadConfigFs reads a json5 file and merges `<name>.local.<ext>` over it, the local file
// wins for every non-zero field. Either file may be missing, os.ErrNotExist is returned only
// when both are.
func ReadConfigFs[T any](fs afero.Fs, name string) (T, error) {
	var out T

	base, foundBase, err := readFile(fs, name)
	if err != nil {
		return out, err
	}
	if foundBase && len(base) > 0 {
		err = json5.Unmarshal(base, &out)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
	}

	localPath := localName(name)
	local, foundLocal, err := readFile(fs, localPath)
	if err != nil {
		return out, err
	}
	if foundLocal && len(local) > 0 {
		var override T
		err = json5.Unmarshal(local, &override)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", localPath, err)
		}
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Debug("merged config with local overrides", "local", localPath)
	}

	if !foundBase && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively looks for name in the working directory and then in every parent up to
// the filesystem root, reading the first one found.
func ReadRecursively[T any](name string) (T, error) {
	cwd, err := os.Getwd()
	if err != nil {
		var out T
		return out, err
	}
	return ReadRecursivelyFs[T](afero.NewOsFs(), cwd, name)
}

func ReadRecursivelyFs[T any](fs afero.Fs, dir, name string) (T, error) {
	current := filepath.Clean(dir)
	for {
		config, err := ReadConfigFs[T](fs, filepath.Join(current, name))
		if err == nil || !os.IsNotExist(err) {
			return config, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			var out T
			return out, os.ErrNotExist
		}
		current = parent
	}
}
