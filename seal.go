// Package seal adapts a record-oriented secure-transport engine into an
// asynchronous byte-stream pipeline.
//
// A Session sits between a Downstream transport and an Upstream consumer: it
// drives the engine handshake, wraps queued application writes into ciphertext
// records, unwraps inbound ciphertext into plaintext, and settles handshake
// and close completions exactly once. All engine access is serialized on one
// internal task loop, so sessions are safe to use from any goroutine.
package seal
