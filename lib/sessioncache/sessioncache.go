// Package sessioncache persists core session snapshots so a process can pick up a session
// instead of logging in again.
package sessioncache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"edupage-client/internal/components/assert"
	"edupage-client/internal/components/chrono"
	configlibsql "edupage-client/lib/configutil/libsql"
	"edupage-client/lib/platforms/edupage/core"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

//go:embed schema.sql
var Schema string

const (
	memorySize = 64
	memoryTTL  = time.Minute * 15
)

type Config = configlibsql.Struct

// Cache stores snapshots in a session table, recently used ones are also kept in memory.
type Cache struct {
	db     *sql.DB
	time   chrono.API
	memory *expirable.LRU[string, core.Snapshot]
}

// Key identifies a session by the login name and the school it was made on.
func Key(username, edupage string) string {
	username = strings.ToLower(strings.TrimSpace(username))
	edupage = strings.ToLower(strings.TrimSpace(edupage))
	if edupage == "" {
		return username
	}
	return username + "@" + edupage
}

func Open(ctx context.Context, config Config) (*Cache, error) {
	db, err := config.OpenDB()
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	cache, err := New(ctx, db, chrono.StandardImpl{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return cache, nil
}

// New uses an already open database, creating the session table when it is missing.
func New(ctx context.Context, db *sql.DB, clock chrono.API) (*Cache, error) {
	assert.NotNil(db, "session database")
	assert.NotNil(clock, "clock")
	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Cache{
		db:     db,
		time:   clock,
		memory: expirable.NewLRU[string, core.Snapshot](memorySize, nil, memoryTTL),
	}, nil
}

// Load returns the stored snapshot, found is false when there is none.
func (c *Cache) Load(ctx context.Context, key string) (snapshot core.Snapshot, found bool, err error) {
	cached, hit := c.memory.Get(key)
	if hit {
		return cached, true, nil
	}

	var raw string
	err = c.db.QueryRowContext(ctx, "select snapshot from session where key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("load session %s: %w", key, err)
	}
	err = json.Unmarshal([]byte(raw), &snapshot)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("decode session %s: %w", key, err)
	}

	c.memory.Add(key, snapshot)
	return snapshot, true, nil
}

func (c *Cache) Save(ctx context.Context, key string, snapshot core.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(
		ctx,
		`insert into session (key, snapshot, updated_at) values (?, ?, ?)
		on conflict (key) do update set snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		key, string(raw), c.time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	c.memory.Add(key, snapshot)
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.memory.Remove(key)
	_, err := c.db.ExecContext(ctx, "delete from session where key = ?", key)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}

// UpdatedAt is when key was last saved, zero when it never was.
func (c *Cache) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var unix int64
	err := c.db.QueryRowContext(ctx, "select updated_at from session where key = ?", key).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}

func (c *Cache) Close() error {
	c.memory.Purge()
	return c.db.Close()
}
