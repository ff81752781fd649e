// Package leap implements the client side of the LEAP protocol: the wire
// framer, the connection state machine, request/reply correlation, and the
// pump listener registry.
//
// Ownership boundary:
// - "<length>:<body>" framing over a byte stream (Protocol)
// - handshake, inbound dispatch, and connection lifecycle (Client)
// - reply futures keyed by reqid (Request)
// - per-pump subscriptions with shared peer registrations (Listener)
// - the TCP connect-back bridge (BridgeServer)
//
// Message bodies are LLSD values; see the llsd package.
package leap
