// Package transport is the HTTP collaborator the auth client talks to token
// and revocation endpoints through.
//
// The Doer interface takes a fully buffered Request and returns a fully
// buffered Response, which keeps the auth client free of net/http plumbing
// and lets tests substitute a fake without running a server.
//
// No timeouts are applied here. Cancellation and deadlines come from the
// context passed to Do.
package transport
