package commands

import (
	"context"
	"fmt"
	"log/slog"

	"edupage-client/internal/components/telemetry"
	"edupage-client/lib/platforms/edupage"
	"edupage-client/lib/platforms/edupage/core"
	"edupage-client/lib/restyutil"
	"edupage-client/lib/sessioncache"
)

func loginOptions(cfg Config, code string) core.LoginOptions {
	return core.LoginOptions{
		Edupage: cfg.Edupage,
		User:    cfg.User,
		Code2FA: code,
	}
}

func newClient(cfg Config) (*core.Client, error) {
	opts := core.Options{
		CloudflareBypass: cfg.CloudflareBypass,
		Telemetry:        telemetry.SlogAPI{},
	}
	if cfg.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.DumpDir)
		if err != nil {
			return nil, err
		}
		opts.Output = output
	}
	return core.NewClient(opts)
}

func openCache(ctx context.Context, cfg Config) (*sessioncache.Cache, error) {
	if cfg.SessionCache.File == "" && cfg.SessionCache.Url == "" {
		return nil, nil
	}
	return sessioncache.Open(ctx, cfg.SessionCache)
}

// session is a loaded account. Close saves the session for the next run.
type session struct {
	*edupage.Edupage
	cache *sessioncache.Cache
	key   string
}

func (s session) Close(ctx context.Context) {
	if s.cache == nil {
		return
	}
	err := s.cache.Save(ctx, s.key, s.Core().Snapshot())
	if err != nil {
		slog.Warn("failed to save session", "err", err)
	}
	s.cache.Close()
}

// openSession restores the cached session and refreshes with it, the client logs in again by
// itself if the portal dropped the session. Without a cached session it logs in.
func openSession(ctx context.Context, cfg Config, code string) (s session, err error) {
	secret, err := password(cfg)
	if err != nil {
		return session{}, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return session{}, err
	}
	cache, err := openCache(ctx, cfg)
	if err != nil {
		return session{}, err
	}
	if cache != nil {
		defer func() {
			if err != nil {
				cache.Close()
			}
		}()
	}
	s = session{
		Edupage: edupage.New(client, edupage.Options{Telemetry: telemetry.SlogAPI{}}),
		cache:   cache,
		key:     sessioncache.Key(cfg.Username, cfg.Edupage),
	}

	if cache != nil {
		snapshot, found, loadErr := cache.Load(ctx, s.key)
		if loadErr != nil {
			slog.Warn("ignoring session cache", "err", loadErr)
		}
		if found && snapshot.Origin != "" {
			err = client.Restore(snapshot)
			if err != nil {
				return session{}, err
			}
			client.SetCredentials(cfg.Username, secret, loginOptions(cfg, code))
			slog.Debug("restored session", "key", s.key, "origin", snapshot.Origin)
			err = s.Refresh(ctx)
			if err != nil {
				return session{}, err
			}
			return s, nil
		}
	}

	result, err := s.Login(ctx, cfg.Username, secret, loginOptions(cfg, code))
	if err != nil {
		return session{}, err
	}
	if result.Pending2FA {
		return session{}, fmt.Errorf("the account needs a second factor, pass it with --code")
	}
	return s, nil
}
