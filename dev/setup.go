package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	devenv "edupage-client/dev/env"
	"edupage-client/lib/sessioncache"
)

const sessionCacheFile = "<dev_state>/sessions.db"

func createSessionCache() error {
	cache, err := sessioncache.Open(context.Background(), sessioncache.Config{File: sessionCacheFile})
	if err != nil {
		return err
	}
	return cache.Close()
}

func writeTemplate(path string, contents any) error {
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("keeping", path)
		return nil
	}

	encoded, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println("writing", path)
	return os.WriteFile(path, encoded, 0o600)
}

// writeTemplates leaves an empty live test account and a local config for edupage-check
// that keeps its session and transcripts in the state directory.
func writeTemplates() error {
	root, err := devenv.GetWorkspaceRoot()
	if err != nil {
		return err
	}
	state := filepath.Join(root, "dev", ".state")

	err = writeTemplate(filepath.Join(state, "edupage_config.json"), devenv.EdupageTestConfig{})
	if err != nil {
		return err
	}
	return writeTemplate(filepath.Join(root, "edupage.local.json5"), map[string]any{
		"username": "",
		"edupage":  "",
		"session_cache": map[string]string{
			"file": sessionCacheFile,
		},
		"dump_dir": filepath.Join(state, "transcripts"),
	})
}
