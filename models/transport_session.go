package models

import "time"

// Transport session statuses
const (
	TransportSessionStatusConnected    = "connected"
	TransportSessionStatusDisconnected = "disconnected"
	TransportSessionStatusPairing      = "pairing"
)

// TransportSession is the tenant's named chat-transport session as last reported by the session manager
type TransportSession struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TenantID    uint       `gorm:"not null;index:idx_transport_sessions_tenant_id" json:"tenant_id"`
	SessionName string     `gorm:"size:128;not null;uniqueIndex:ux_transport_sessions_name" json:"session_name"`
	Status      string     `gorm:"size:32;not null;default:'disconnected'" json:"status"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (TransportSession) TableName() string { return "transport_sessions" }

// IsConnected reports whether messages can be sent through this session
func (s *TransportSession) IsConnected() bool {
	return s != nil && s.Status == TransportSessionStatusConnected
}
