// Package auth resolves the credentials used to elevate a realtime
// connection from anonymous to authenticated.
//
// Tokens come in three kinds with a fixed priority order: the dedicated
// realtime token, the general session token, and a fallback session
// credential. The Resolver walks the chain, caches what it finds, and is
// cleared when the server signals token expiry. Tokens are never persisted
// here.
package auth
