package events

import (
	"encoding/json"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"go.uber.org/zap"
)

// Event types pushed to dashboards.
const (
	TypeDecision         = "decision"
	TypeEmergency        = "emergency"
	TypePointStatus      = "point_status_changed"
	TypeControllerHealth = "controller_health_changed"
	TypeVisitorExpired   = "visitor_expired"
)

// Message is the envelope for every broadcast event.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewMessage creates a timestamped message.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// DecisionPayload mirrors one audit entry for live display.
type DecisionPayload struct {
	LogID          string                `json:"log_id"`
	AccessPointID  string                `json:"access_point_id"`
	PersonID       string                `json:"person_id,omitempty"`
	CredentialType models.CredentialType `json:"credential_type"`
	Direction      models.Direction      `json:"direction"`
	Result         models.Result         `json:"result"`
	Reason         string                `json:"reason"`
}

// EmergencyPayload summarizes an emergency batch operation.
type EmergencyPayload struct {
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	ActorID  string `json:"actor_id"`
	Affected int    `json:"affected"`
	Skipped  int    `json:"skipped"`
}

// PointStatusPayload announces one access point transition.
type PointStatusPayload struct {
	AccessPointID string                   `json:"access_point_id"`
	From          models.AccessPointStatus `json:"from"`
	To            models.AccessPointStatus `json:"to"`
	Reason        string                   `json:"reason"`
	ActorID       string                   `json:"actor_id,omitempty"`
}

// ControllerHealthPayload announces a controller health transition.
type ControllerHealthPayload struct {
	ControllerID string                  `json:"controller_id"`
	Status       models.ControllerStatus `json:"status"`
	LastSeen     time.Time               `json:"last_seen"`
}

// VisitorExpiredPayload announces a visitor whose window ended.
type VisitorExpiredPayload struct {
	PersonID   string    `json:"person_id"`
	Name       string    `json:"name"`
	ValidUntil time.Time `json:"valid_until"`
}

// Broadcaster serializes engine events onto the hub.
type Broadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewBroadcaster creates a broadcaster. A nil hub disables broadcasting.
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, logger: logger}
}

func (b *Broadcaster) send(msg Message) {
	if b == nil || b.hub == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("Failed to encode event", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	b.hub.Broadcast(data)
}

// Decision broadcasts a validation outcome.
func (b *Broadcaster) Decision(p DecisionPayload) {
	b.send(NewMessage(TypeDecision, p))
}

// Emergency broadcasts an emergency batch summary.
func (b *Broadcaster) Emergency(p EmergencyPayload) {
	b.send(NewMessage(TypeEmergency, p))
}

// PointStatus broadcasts a single point transition.
func (b *Broadcaster) PointStatus(p PointStatusPayload) {
	b.send(NewMessage(TypePointStatus, p))
}

// ControllerHealth broadcasts a controller transition.
func (b *Broadcaster) ControllerHealth(p ControllerHealthPayload) {
	b.send(NewMessage(TypeControllerHealth, p))
}

// VisitorExpired broadcasts a visitor window expiry.
func (b *Broadcaster) VisitorExpired(p VisitorExpiredPayload) {
	b.send(NewMessage(TypeVisitorExpired, p))
}
