package storage

import (
	"context"
	"sort"

	"site89-bot/internal/clearance"
)

type ClearanceEntry struct {
	UserID string
	Level  clearance.Level
}

type clearanceDocument struct {
	Version int                                   `json:"version"`
	Guilds  map[string]map[string]clearance.Level `json:"guilds"`
}

func (d *clearanceDocument) normalize() {
	d.Version = schemaVersion
	if d.Guilds == nil {
		d.Guilds = make(map[string]map[string]clearance.Level)
	}
}

// SetClearance stores the level after validating it; invalid values return
// clearance.ErrInvalidLevel without touching the document.
func (s *Store) SetClearance(ctx context.Context, guildID, userID string, level clearance.Level) (clearance.Level, error) {
	parsed, err := clearance.Parse(string(level))
	if err != nil {
		return "", err
	}
	err = mutate(ctx, s, keyClearance, func(doc *clearanceDocument) error {
		users := doc.Guilds[guildID]
		if users == nil {
			users = make(map[string]clearance.Level)
			doc.Guilds[guildID] = users
		}
		users[userID] = parsed
		return nil
	})
	if err != nil {
		return "", err
	}
	return parsed, nil
}

// Clearance returns the stored level, or clearance.Lowest when none is stored
// or the stored tag is no longer recognised.
func (s *Store) Clearance(ctx context.Context, guildID, userID string) (clearance.Level, error) {
	doc, err := read[clearanceDocument](ctx, s, keyClearance)
	if err != nil {
		return "", err
	}
	level, ok := doc.Guilds[guildID][userID]
	if !ok || !level.Valid() {
		return clearance.Lowest, nil
	}
	return level, nil
}

// ClearanceList returns every stored entry for the guild, highest level first.
func (s *Store) ClearanceList(ctx context.Context, guildID string) ([]ClearanceEntry, error) {
	doc, err := read[clearanceDocument](ctx, s, keyClearance)
	if err != nil {
		return nil, err
	}
	users := doc.Guilds[guildID]
	entries := make([]ClearanceEntry, 0, len(users))
	for userID, level := range users {
		if !level.Valid() {
			continue
		}
		entries = append(entries, ClearanceEntry{UserID: userID, Level: level})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Level.Rank() != entries[j].Level.Rank() {
			return entries[i].Level.Rank() > entries[j].Level.Rank()
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}
