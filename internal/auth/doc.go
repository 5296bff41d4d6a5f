// Package auth issues and validates the bearer tokens that guard
// mutating REST routes.
//
// Tokens are HS256-signed JWTs carrying a subject and an expiry. The
// signing secret comes from configuration and must be at least 32
// characters; config validation enforces this before the server
// starts. There is no user database: any token signed with the shared
// secret is accepted, which suits a single-operator printer bridge.
package auth
