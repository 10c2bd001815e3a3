package commands

import (
	"edupage-client/lib/sessioncache"
	"edupage-client/lib/telemetry"
)

type Config struct {
	Username string `json:"username"`
	// Password may be left out when it is stored in the OS keyring.
	Password string `json:"password"`
	Edupage  string `json:"edupage"`
	// User picks an account when the credentials match several.
	User             string `json:"user"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
	// DumpDir receives a transcript of every request when set.
	DumpDir      string              `json:"dump_dir"`
	SessionCache sessioncache.Config `json:"session_cache"`
	Telemetry    telemetry.Config    `json:"telemetry"`
}
