package handler

import (
	"net/http"

	"photoreviver/internal/logger"
	hub "photoreviver/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressWebsocketHandler streams progress events. With ?job=<id> only that
// job's events are delivered.
func ProgressWebsocketHandler(progress *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		job := r.URL.Query().Get("job")
		progress.Register(connection, job)
		defer progress.Unregister(connection)
	
		logger.Debug("Progress subscriber connected (job %q)", job)

		// Clients never send anything useful; reading detects the close.
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Progress subscriber disconnected normally")
				} else {
					logger.Warning("Progress subscriber disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
