package domain

import "time"

// User is owned by the durable store; the runtime only references its ID.
// IsOnline and LastSeen are maintained by the presence worker.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}
