// Package devenv locates the workspace and its dev/.state directory, which holds local
// secrets and databases that never get committed.
package devenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"edupage-client/lib/configutil"
)

const (
	moduleName  = "edupage-client"
	statePrefix = "<dev_state>"
)

var modName = regexp.MustCompile(`(?m)^module\s+([\w\-_./]+)\s*$`)

func isWorkspaceRoot(dir string) bool {
	mod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == moduleName
}

func GetWorkspaceRoot() (string, error) {
	current, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	for {
		if isWorkspaceRoot(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}

func GetStateFilePath(path string) (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state", path), nil
}

func GetStateConfig[T any](path string) (T, error) {
	configPath, err := GetStateFilePath(path)
	if err != nil {
		var out T
		return out, err
	}
	return configutil.ReadConfig[T](configPath)
}

// ResolvePath expands a leading <dev_state> to the state directory, creating it. Other paths
// are returned as they are.
func ResolvePath(path string) (string, error) {
	rest, found := strings.CutPrefix(path, statePrefix)
	if !found {
		return path, nil
	}

	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	stateDir := filepath.Join(root, "dev", ".state")
	err = os.MkdirAll(stateDir, 0o755)
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, strings.TrimLeft(rest, `/\`)), nil
}
