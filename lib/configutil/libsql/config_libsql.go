// Package configlibsql opens the database a config section points to: a remote libsql
// server, or a local sqlite file.
package configlibsql

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	devenv "edupage-client/dev/env"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const memory = ":memory:"

type Struct struct {
	// File is a local path, it may start with <dev_state>. ":memory:" keeps everything in
	// the process.
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return config.openRemote()
	}
	return config.openLocal()
}

func (config Struct) openRemote() (*sql.DB, error) {
	target, err := url.Parse(config.Url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if config.AuthToken != "" {
		query := target.Query()
		query.Set("authToken", config.AuthToken)
		target.RawQuery = query.Encode()
	}
	return sql.Open("libsql", target.String())
}

func (config Struct) openLocal() (*sql.DB, error) {
	if config.File == "" {
		return nil, fmt.Errorf("neither a database url nor a file was specified")
	}

	dbpath := config.File
	if dbpath != memory {
		var err error
		dbpath, err = devenv.ResolvePath(config.File)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(dbpath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// a single writer, concurrent sqlite writers only fight over the lock. it also keeps an
	// in-memory database alive on one connection.
	db.SetMaxOpenConns(1)
	if dbpath != memory {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
