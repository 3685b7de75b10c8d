// Package server defines transport names and small helpers shared by the TCP
// and WebSocket front ends.
package server

import "strings"

// Transport labels used in logs and metrics.
const (
	transportTCP       = "tcp"
	transportWebSocket = "websocket"
)

// frameLines splits a WebSocket text frame into protocol lines the way the
// TCP scanner would: on "\n", with a trailing "\r" dropped from each line.
// A single line ending at the end of the frame does not start a new line.
func frameLines(frame string) []string {
	lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
