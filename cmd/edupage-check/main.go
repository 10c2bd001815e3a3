package main

import (
	"edupage-client/cmd/edupage-check/commands"
	"edupage-client/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
