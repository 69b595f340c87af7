package storage

import (
	"context"
	"errors"
	"time"
)

var ErrWarningNotFound = errors.New("warning not found")

type Warning struct {
	ID          int64     `json:"id"`
	Reason      string    `json:"reason"`
	ModeratorID string    `json:"moderatorId"`
	CreatedAt   time.Time `json:"time"`
}

type warningsDocument struct {
	Version int                             `json:"version"`
	Guilds  map[string]map[string][]Warning `json:"guilds"`
}

func (d *warningsDocument) normalize() {
	d.Version = schemaVersion
	if d.Guilds == nil {
		d.Guilds = make(map[string]map[string][]Warning)
	}
}

func (d *warningsDocument) list(guildID, userID string) []Warning {
	return d.Guilds[guildID][userID]
}

func (d *warningsDocument) set(guildID, userID string, warnings []Warning) {
	users := d.Guilds[guildID]
	if users == nil {
		users = make(map[string][]Warning)
		d.Guilds[guildID] = users
	}
	users[userID] = warnings
}

// AddWarning appends a warning and returns it with the user's new total.
// IDs are one past the highest ID the user currently holds.
func (s *Store) AddWarning(ctx context.Context, guildID, userID, moderatorID, reason string) (Warning, int, error) {
	var (
		created Warning
		total   int
	)
	err := mutate(ctx, s, keyWarnings, func(doc *warningsDocument) error {
		current := doc.list(guildID, userID)
		var next int64 = 1
		for _, w := range current {
			if w.ID >= next {
				next = w.ID + 1
			}
		}
		created = Warning{
			ID:          next,
			Reason:      reason,
			ModeratorID: moderatorID,
			CreatedAt:   s.clock.Now().UTC(),
		}
		current = append(current, created)
		doc.set(guildID, userID, current)
		total = len(current)
		return nil
	})
	if err != nil {
		return Warning{}, 0, err
	}
	return created, total, nil
}

// Warnings returns the user's warnings oldest first.
func (s *Store) Warnings(ctx context.Context, guildID, userID string) ([]Warning, error) {
	doc, err := read[warningsDocument](ctx, s, keyWarnings)
	if err != nil {
		return nil, err
	}
	current := doc.list(guildID, userID)
	out := make([]Warning, len(current))
	copy(out, current)
	return out, nil
}

func (s *Store) RemoveWarning(ctx context.Context, guildID, userID string, id int64) (Warning, error) {
	var removed Warning
	err := mutate(ctx, s, keyWarnings, func(doc *warningsDocument) error {
		current := doc.list(guildID, userID)
		for i, w := range current {
			if w.ID != id {
				continue
			}
			removed = w
			next := make([]Warning, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			doc.set(guildID, userID, next)
			return nil
		}
		return ErrWarningNotFound
	})
	return removed, err
}

func (s *Store) EditWarning(ctx context.Context, guildID, userID string, id int64, reason string) (Warning, error) {
	var edited Warning
	err := mutate(ctx, s, keyWarnings, func(doc *warningsDocument) error {
		current := doc.list(guildID, userID)
		for i := range current {
			if current[i].ID != id {
				continue
			}
			current[i].Reason = reason
			edited = current[i]
			return nil
		}
		return ErrWarningNotFound
	})
	return edited, err
}

// ClearWarnings empties the user's list and returns how many were removed.
func (s *Store) ClearWarnings(ctx context.Context, guildID, userID string) (int, error) {
	var cleared int
	err := mutate(ctx, s, keyWarnings, func(doc *warningsDocument) error {
		cleared = len(doc.list(guildID, userID))
		doc.set(guildID, userID, []Warning{})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cleared, nil
}
