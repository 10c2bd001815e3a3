package commands

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "edupage-check"

// password prefers the config file, then the OS keyring entry for the username.
func password(cfg Config) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	if cfg.Username == "" {
		return "", fmt.Errorf("no username configured")
	}
	secret, err := keyring.Get(keyringService, cfg.Username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no password for %s in the config or the keyring, run login with --save-password", cfg.Username)
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return secret, nil
}

func savePassword(username, secret string) error {
	err := keyring.Set(keyringService, username, secret)
	if err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}
