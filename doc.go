// Package authcore implements the session and credential management core of
// the Seminaria web application: password verification, signed session
// tokens, durable session records, cookie transport, and the per-request
// authentication gate.
//
// The package is assembled through a [Builder]:
//
//	engine, err := authcore.NewBuilder().
//		WithConfig(cfg).
//		WithRedis(rdb, "sess").
//		WithUserProvider(users).
//		Build()
//
// The resulting [Engine] exposes the boundary operations consumed by the
// route/controller layer: Login, Logout, Authenticate, RefreshSession, and
// the account operations Register, ResetPassword, and LoginExternal.
// Rendering, routing, and rate limiting are the caller's concern.
package authcore
