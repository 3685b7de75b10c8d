// Package chat implements the connection lifecycle and message fan-out of the
// line chat: the shared client registry, the bounded history replayed to new
// users, the per-connection protocol state machine and the server that ties
// them together.
//
// The package does not own any transport. A transport hands each accepted
// connection to Server.Connect, feeds decoded lines to Session.HandleLine and
// reports the end of the stream with Server.Disconnect.
package chat
