// Package server implements the network side of the chat: the TCP line
// protocol listener, the WebSocket gateway and the HTTP endpoints for health,
// metrics and the online list.
//
// The implementation is organized into files for configuration, logging,
// transports, routing and HTTP handlers; the chat semantics themselves live
// in package chat.
package server
