package gate

import (
	"context"
	"fmt"

	"site89-bot/internal/clearance"

	"github.com/bwmarrin/discordgo"
)

type Role struct {
	ID   string
	Name string
}

// Subject is the invoking member as seen by a policy.
type Subject struct {
	GuildID     string
	UserID      string
	Permissions int64
	Roles       []Role
}

// Decision is a policy verdict. Err is set when the verdict could not be
// reached, for example when a level source failed; Reason stays user-facing.
type Decision struct {
	Allowed bool
	Reason  string
	Err     error
}

type Policy interface {
	Check(ctx context.Context, subject Subject) Decision
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

type permissionPolicy struct {
	bit   int64
	label string
}

// RequirePermission allows members holding bit, or Administrator.
func RequirePermission(bit int64, label string) Policy {
	return permissionPolicy{bit: bit, label: label}
}

func (p permissionPolicy) Check(_ context.Context, subject Subject) Decision {
	if subject.Permissions&discordgo.PermissionAdministrator != 0 || subject.Permissions&p.bit == p.bit {
		return allow()
	}
	return deny(fmt.Sprintf("❌ You need **%s** permission.", p.label))
}

type rolePolicy struct {
	label   string
	roleIDs map[string]struct{}
}

// RequireRole allows members holding any of roleIDs. Empty IDs are ignored,
// so an unconfigured role denies everyone.
func RequireRole(label string, roleIDs ...string) Policy {
	set := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return rolePolicy{label: label, roleIDs: set}
}

func (p rolePolicy) Check(_ context.Context, subject Subject) Decision {
	for _, role := range subject.Roles {
		if _, ok := p.roleIDs[role.ID]; ok {
			return allow()
		}
	}
	return deny(fmt.Sprintf("❌ You need the **%s** role to use this command.", p.label))
}

// LevelSource yields the numeric clearance of a subject.
type LevelSource interface {
	Level(ctx context.Context, subject Subject) (int, error)
}

type levelPolicy struct {
	min    int
	source LevelSource
}

func RequireLevel(min int, source LevelSource) Policy {
	return levelPolicy{min: min, source: source}
}

func (p levelPolicy) Check(ctx context.Context, subject Subject) Decision {
	level, err := p.source.Level(ctx, subject)
	if err != nil {
		decision := deny("❌ Could not verify your clearance. Try again later.")
		decision.Err = fmt.Errorf("resolve clearance level: %w", err)
		return decision
	}
	if level >= p.min {
		return allow()
	}
	return deny(fmt.Sprintf("❌ You must be **Level-%d+** to use this command.", p.min))
}

// RoleNames derives the level from "Level-N"/"LN" role display names.
type RoleNames struct{}

func (RoleNames) Level(_ context.Context, subject Subject) (int, error) {
	names := make([]string, 0, len(subject.Roles))
	for _, role := range subject.Roles {
		names = append(names, role.Name)
	}
	return clearance.HighestLevel(names), nil
}

type ClearanceReader interface {
	Clearance(ctx context.Context, guildID, userID string) (clearance.Level, error)
}

// StoredClearance uses the rank of the explicit clearance record.
type StoredClearance struct {
	Store ClearanceReader
}

func (s StoredClearance) Level(ctx context.Context, subject Subject) (int, error) {
	level, err := s.Store.Clearance(ctx, subject.GuildID, subject.UserID)
	if err != nil {
		return 0, err
	}
	return level.Rank(), nil
}
