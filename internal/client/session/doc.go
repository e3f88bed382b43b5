// Package session owns the authenticated session of the client: the
// access/refresh credential pair and the identity it belongs to.
//
// Store is the only place the pair lives. Writers are the explicit
// login/logout flow (services.AuthService) and the renewal flow inside
// client.Gateway; every other component depends on the read-only Reader.
// Both tokens are always replaced together and every replacement bumps the
// store's epoch, which lets concurrent callers tell whether the credential
// they used is still the current one.
//
// A Persister (see SQLitePersister) keeps a sealed snapshot across restarts.
package session
