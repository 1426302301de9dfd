// Package provider describes the identity providers tokenwarden can talk to.
//
// A Config is pure data: client id, optional client secret, scopes and the
// authorization, token and revocation endpoints. New validates it eagerly so
// a missing client id is reported at construction, before any network call.
package provider
