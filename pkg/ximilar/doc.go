// Package ximilar is the entry point for working with Ximilar services.
//
// An App owns an authenticated endpoint chain and a cache. Workspace-scoped
// apps share the cache of the app they were derived from:
//
//	app, err := ximilar.New(ximilar.Options{Token: os.Getenv("XIMILAR_TOKEN")})
//	if err != nil {
//		return err
//	}
//	fashion, err := app.WorkspaceByName(ctx, "Fashion")
//	if err != nil {
//		return err
//	}
//	labels, err := fashion.Recognition().AllLabels(ctx)
//
// Cached data is invalidated before every mutating call made through the app.
// The workspace list never expires on its own; call Invalidate to refresh it.
package ximilar
