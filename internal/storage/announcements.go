package storage

import (
	"context"
	"time"
)

// AnnouncementPointer locates the most recent SSU announcement so later
// commands can edit it in place.
type AnnouncementPointer struct {
	ChannelID string    `json:"channelId"`
	MessageID string    `json:"messageId"`
	PostedBy  string    `json:"postedBy,omitempty"`
	PostedAt  time.Time `json:"postedAt"`
}

type announcementsDocument struct {
	Version int                            `json:"version"`
	Guilds  map[string]AnnouncementPointer `json:"guilds"`
}

func (d *announcementsDocument) normalize() {
	d.Version = schemaVersion
	if d.Guilds == nil {
		d.Guilds = make(map[string]AnnouncementPointer)
	}
}

func (s *Store) SetAnnouncementPointer(ctx context.Context, guildID string, pointer AnnouncementPointer) error {
	if pointer.PostedAt.IsZero() {
		pointer.PostedAt = s.clock.Now().UTC()
	}
	return mutate(ctx, s, keyAnnouncements, func(doc *announcementsDocument) error {
		doc.Guilds[guildID] = pointer
		return nil
	})
}

// AnnouncementPointer reports ok=false when nothing was ever posted in the guild.
func (s *Store) AnnouncementPointer(ctx context.Context, guildID string) (AnnouncementPointer, bool, error) {
	doc, err := read[announcementsDocument](ctx, s, keyAnnouncements)
	if err != nil {
		return AnnouncementPointer{}, false, err
	}
	pointer, ok := doc.Guilds[guildID]
	if !ok || pointer.ChannelID == "" || pointer.MessageID == "" {
		return AnnouncementPointer{}, false, nil
	}
	return pointer, true, nil
}
