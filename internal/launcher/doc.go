// Package launcher drives the interactive half of the authorization flow on
// a desktop: it opens the provider's consent page in the user's browser and
// captures the redirect on a single-use loopback HTTP server.
//
// The auth client only depends on the Launcher interface, so headless
// environments can supply their own implementation (for example one that
// prints the URL and reads the callback parameters from stdin).
package launcher
