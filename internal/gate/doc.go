// Package gate is the connection governance core of dormchat.
//
// It owns admission of chat sessions against a capacity ceiling, per-client
// sliding-window rate limiting, idle-session supervision, and the teardown
// discipline that keeps the capacity counter and rate-limit store balanced
// on every exit path.
//
// The package is transport-agnostic: the WebSocket layer adapts a
// connection behind the Transport interface (defined here, on the consumer
// side) and hands it to Gatekeeper.Handle, which runs the session end to
// end. The query pipeline is likewise consumed through the Answerer
// interface, so tests drive sessions with in-memory fakes.
package gate
