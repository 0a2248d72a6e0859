// Package plugin implements the extension system of the Coda editor:
// manifest parsing and validation, staged bundle installation with
// signature verification, and a per-identifier activation engine that runs
// plugin code in sandboxed Lua runtimes.
//
// The package exposes three cooperating services. Registry holds the
// installed-plugin set. Installer mutates it through discovery, install,
// and uninstall. Engine owns activation: it builds an isolated runtime per
// plugin, invokes lifecycle hooks under a deadline, and keeps the
// active-instance registry consistent with the installed set.
//
//	registry := plugin.NewRegistry()
//	engine := plugin.NewEngine(registry, hostVersion, plugin.WithBinder(api))
//	installer := plugin.NewInstaller(dir, registry, engine, hostVersion)
//
//	installer.Discover(ctx)
//	if err := engine.Activate(ctx, "com.example.fmt"); err != nil {
//	    log.Printf("activation failed: %v", err)
//	}
package plugin
