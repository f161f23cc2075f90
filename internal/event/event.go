package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLoggedIn       Type = "auth.logged_in"
	TypeLoginFailed    Type = "auth.login_failed"
	TypeRegistered     Type = "auth.registered"
	TypeRegisterFailed Type = "auth.register_failed"
	TypeLoggedOut      Type = "auth.logged_out"
	TypeProfileUpdated Type = "auth.profile_updated"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func New(t Type, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: at.UTC(),
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
