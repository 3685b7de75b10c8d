// Package server exposes HTTP handlers, including the WebSocket gateway,
// health checks, the online list and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// onlineResponse is the body of GET /online.
type onlineResponse struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// WebSocketHandler upgrades the request and runs a chat session over it until
// the socket closes.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()
	s.serveWebSocket(r.Context(), conn, r.RemoteAddr)
}

// HealthHandler reports that the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "linechat server is running!")
}

// OnlineHandler lists the logins currently registered, in registration order.
func (s *Server) OnlineHandler(w http.ResponseWriter, _ *http.Request) {
	users := s.chat.Online()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(onlineResponse{Count: len(users), Users: users}); err != nil {
		s.logger.Error("error writing online response", "error", err)
	}
}

// TestPageHandler serves a minimal browser client for the WebSocket gateway.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		s.logger.Error("error writing test page", "error", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>linechat</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; white-space: pre-wrap; }
        input[type="text"] { width: 300px; }
    </style>
</head>
<body>
    <h1>linechat</h1>
    <p>Send <code>login:&lt;name&gt;</code> first, then chat. <code>users:online</code> lists who is here.</p>
    <div id="log"></div>
    <input type="text" id="line" placeholder="login:alice" disabled>
    <button id="send" disabled>Send</button>
    <script>
        const log = document.getElementById('log');
        const line = document.getElementById('line');
        const send = document.getElementById('send');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');

        function append(text) {
            log.textContent += text;
            log.scrollTop = log.scrollHeight;
        }
        function submit() {
            if (line.value !== '' && ws.readyState === WebSocket.OPEN) {
                ws.send(line.value);
                line.value = '';
            }
        }

        ws.onopen = () => { line.disabled = false; send.disabled = false; append('* connected\n'); };
        ws.onmessage = (event) => append(event.data);
        ws.onclose = () => { line.disabled = true; send.disabled = true; append('* disconnected\n'); };
        send.onclick = submit;
        line.addEventListener('keypress', (e) => { if (e.key === 'Enter') submit(); });
    </script>
</body>
</html>`
