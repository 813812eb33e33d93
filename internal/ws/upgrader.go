package ws

import (
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Development mode accepts any origin.
		if os.Getenv("ENVIRONMENT") == "development" {
			return true
		}

		allowed := []string{
			"http://localhost:3000",
			"http://localhost:8080",
		}
		if extra := os.Getenv("ALLOWED_ORIGINS"); extra != "" {
			allowed = append(allowed, strings.Split(extra, ",")...)
		}

		return slices.Contains(allowed, r.Header.Get("Origin"))
	},
}
