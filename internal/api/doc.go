// Package api serves a small read-only HTTP status API for the bridge.
//
// Routes:
//
//	GET /api/v1/health           bridge health and dependency checks (503 when either fails)
//	GET /api/v1/devices          configured robots with their cached state
//	GET /api/v1/devices/{slug}   one robot
//	GET /api/v1/commands         command journal, filtered and paged
//
// Device state is served from the bridge cache only; a request never
// triggers a vendor API call. The server follows the same lifecycle as the
// other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
