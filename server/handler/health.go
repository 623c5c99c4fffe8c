package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"anonchat/server/room"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Active    int       `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

func HandleHealth(chat *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "UP",
			Active:    chat.Count(),
			Timestamp: time.Now(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
