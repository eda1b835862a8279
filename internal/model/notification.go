package model

import "encoding/json"

// NotificationType enumerates the event categories pushed by the backend.
type NotificationType string

const (
	NotificationAlbumCreated       NotificationType = "ALBUM_CREATED"
	NotificationAlbumUpdated       NotificationType = "ALBUM_UPDATED"
	NotificationAlbumDeleted       NotificationType = "ALBUM_DELETED"
	NotificationAlbumCoverUploaded NotificationType = "ALBUM_COVER_UPLOADED"
	NotificationArtistCreated      NotificationType = "ARTIST_CREATED"
	NotificationArtistUpdated      NotificationType = "ARTIST_UPDATED"
	NotificationArtistDeleted      NotificationType = "ARTIST_DELETED"
	NotificationSystem             NotificationType = "SYSTEM_NOTIFICATION"
)

// Notification is a single event received over the push channel. Events are
// transient: delivered once to each registered listener, never persisted.
type Notification struct {
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      json.RawMessage  `json:"data,omitempty"`
	Timestamp string           `json:"timestamp"` // ISO 8601
}

// EntityID extracts the navigable entity id from the payload, if present.
func (n Notification) EntityID() (int64, bool) {
	if len(n.Data) == 0 {
		return 0, false
	}

	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(n.Data, &payload); err != nil || payload.ID == 0 {
		return 0, false
	}

	return payload.ID, true
}
