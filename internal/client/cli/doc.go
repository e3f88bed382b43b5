// Package cli provides the interactive SportMatch command-line client.
//
// It wires configuration, the local database, the credential store, the
// HTTP gateway and the realtime transport, then runs a REPL. Typical flow:
// restore or log in, connect the realtime channel, browse candidates for a
// sport, like or pass, and chat with matches.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
