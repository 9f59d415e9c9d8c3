// Package host loads plugins and calls into them.
//
// A Manager owns the host runtime (argument bags, handle table, config
// store) and a registry of drivers. Each driver turns a Source into a
// plugin module: the wazero driver opens .wasm files, the native driver
// serves plugins linked into the process, and the goja and yaegi drivers
// interpret JavaScript and Go scripts.
//
// Loading a plugin reads its five descriptor entry points, checks the
// capability schema against the JSON Schema and runs plugin_init. A
// non-zero init status fails the load and the instance is never invoked.
//
//	manager, err := host.NewManager(
//	    host.WithDriver(native.NewDriver()),
//	    host.WithLogger(logger),
//	)
//	p, err := manager.Load(ctx, manager.ParseSource("native:foo"))
//	v, err := p.Call(ctx, "foo_greet", entities.Arg("name", entities.String("bob")))
//
// Every Call gets its own argument bag and last-error register; both are
// closed when the call returns. A Loader opens plugin bundles: a
// directory or .zip holding plugin.yaml, the plugin entry and an optional
// config file.
package host
