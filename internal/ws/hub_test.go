package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func newTestClient(userID string) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, 4)}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	c1 := newTestClient("user-1")
	c2 := newTestClient("user-1")
	c3 := newTestClient("user-2")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("ClientCount = %d, want 3", got)
	}
	if got := hub.UserConnectionCount("user-1"); got != 2 {
		t.Fatalf("UserConnectionCount(user-1) = %d, want 2", got)
	}

	hub.Unregister(c1)
	if got := hub.UserConnectionCount("user-1"); got != 1 {
		t.Fatalf("after unregister, UserConnectionCount(user-1) = %d, want 1", got)
	}

	// Unregistering twice must not panic or double-close the channel.
	hub.Unregister(c1)

	hub.Unregister(c2)
	if got := hub.UserConnectionCount("user-1"); got != 0 {
		t.Fatalf("UserConnectionCount(user-1) = %d, want 0", got)
	}
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}
}

func TestHubNotifyUsersDeliversToTargets(t *testing.T) {
	hub := newTestHub()
	doctor := newTestClient("doctor-1")
	patient := newTestClient("patient-1")
	other := newTestClient("user-3")

	hub.Register(doctor)
	hub.Register(patient)
	hub.Register(other)

	hub.NotifyUsers([]string{"doctor-1", "patient-1"}, Event{
		Type:       EventConsultationBooked,
		ResourceID: "consultation-1",
	})

	for _, client := range []*Client{doctor, patient} {
		select {
		case data := <-client.Send:
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			if event.Type != EventConsultationBooked {
				t.Errorf("event type = %q, want %q", event.Type, EventConsultationBooked)
			}
			if event.ResourceID != "consultation-1" {
				t.Errorf("resource id = %q, want consultation-1", event.ResourceID)
			}
			if event.Timestamp.IsZero() {
				t.Error("timestamp was not stamped")
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive event", client.UserID)
		}
	}

	select {
	case <-other.Send:
		t.Fatal("untargeted client received event")
	default:
	}
}

func TestHubNotifyUsersSkipsDisconnected(t *testing.T) {
	hub := newTestHub()

	// No clients registered; must not panic.
	hub.NotifyUsers([]string{"nobody"}, Event{Type: EventVideoStarted})
}

func TestHubNotifyUsersDoesNotBlockOnFullBuffer(t *testing.T) {
	hub := newTestHub()
	client := &Client{UserID: "user-1", Send: make(chan []byte, 1)}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.NotifyUsers([]string{"user-1"}, Event{Type: EventConsultationStatus})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyUsers blocked on a slow client")
	}
}
