// Package realtime keeps a STOMP 1.2 session over WebSocket open for chat
// and match push events.
//
// A Transport moves through Disconnected, Connecting, Connected and
// Reconnecting. After a connection drops it retries with exponential
// backoff up to Config.MaxAttempts, then settles in Disconnected and
// publishes events.TransportUnavailable; only an explicit Connect starts
// it again. Each dial authenticates with the credential current at that
// moment.
//
// Subscriptions belong to the Transport, not to the connection, and are
// registered again on every Connected. Publish is fire-and-forget and
// fails with ErrNotConnected rather than queueing.
package realtime
