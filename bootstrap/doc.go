// Package bootstrap wires a casehub instance together and manages its
// lifecycle.
//
// Usage:
//
//	app, err := bootstrap.NewApp(configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.OpenCase(ctx, "case-1042"); err != nil {
//	    log.Fatal(err)
//	}
//
//	app.WaitForShutdown()
package bootstrap
