package sessiondao

import (
	"fmt"
	"time"
)

// Session is the registry entry for one open WebSocket connection.
// CreatedAt is an RFC 3339 UTC timestamp.
type Session struct {
	ConnectionID string `dynamodbav:"connection_id" ddb:"hash" json:"connectionId"`
	CreatedAt    string `dynamodbav:"created_at"               json:"createdAt"`
	Endpoint     string `dynamodbav:"endpoint,omitempty"       json:"endpoint,omitempty"`
	TTL          int64  `dynamodbav:"ttl,omitempty"            json:"ttl,omitempty"`
}

// NewSession builds the record written on $connect. A zero ttl leaves the
// record without an expiry.
func NewSession(connectionID, endpoint string, now time.Time, ttl time.Duration) Session {
	s := Session{
		ConnectionID: connectionID,
		CreatedAt:    now.UTC().Format(time.RFC3339),
		Endpoint:     endpoint,
	}
	if ttl > 0 {
		s.TTL = now.Add(ttl).Unix()
	}
	return s
}

// Created parses CreatedAt.
func (s Session) Created() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("session %v has invalid created_at %q: %w", s.ConnectionID, s.CreatedAt, err)
	}
	return t, nil
}

// Expired reports whether the record's TTL has passed.
func (s Session) Expired(now time.Time) bool {
	return s.TTL > 0 && s.TTL <= now.Unix()
}
