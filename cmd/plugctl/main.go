// Command plugctl loads plugins through the plugabi host and calls their
// capabilities from the command line.
//
// Usage:
//
//	plugctl [flags] info <source>
//	plugctl [flags] call <source> <function> [name=value | name:kind=value]...
//	plugctl [flags] list
//
// A source is a plugin bundle (a directory or .zip holding plugin.yaml), a
// "driver:location" reference, or a file whose extension selects the driver
// (.wasm, .js, .go). The foo demo plugin is always available as native:foo.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/reglet-dev/plugabi/examples/foo"
	"github.com/reglet-dev/plugabi/infrastructure/native"
)

func init() {
	native.MustRegister(foo.New())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
