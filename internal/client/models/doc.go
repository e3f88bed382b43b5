// Package models defines the client-side shapes of the remote API's JSON
// payloads: users, sports, match results, chat and auth responses.
package models
