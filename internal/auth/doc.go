// Package auth authenticates the Workbench administrator.
//
// Workbench has one account, configured in security.admin: a username and
// an Argon2id password hash in PHC format (generate one with
// `workbench hash-password`). A successful login returns a short-lived
// HS256 JWT which every /api/v1 route except login and health requires.
package auth
