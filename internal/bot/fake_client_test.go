package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"site89-bot/internal/audit"
	"site89-bot/internal/config"
	"site89-bot/internal/gate"
	"site89-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	testGuild   = "g1"
	testChannel = "c1"
	testOwner   = "owner"
	testBotID   = "bot"
	hostRole    = "role-host"
)

type fakeClient struct {
	mu        sync.Mutex
	guild     *discordgo.Guild
	roles     []*discordgo.Role
	members   map[string]*discordgo.Member
	messages  map[string]*discordgo.Message
	lockErrs  map[string]error
	dmErr     error
	sendErr   error
	removeErr error

	calls    []string
	sent     []*discordgo.MessageSend
	dms      []string
	kicks    []string
	added    []string
	removed  []string
	timeouts []string
	seq      int
}

// newFakeClient returns a guild where the bot outranks moderators, who outrank
// regular members.
func newFakeClient() *fakeClient {
	return &fakeClient{
		guild: &discordgo.Guild{ID: testGuild, Name: "Site-89", OwnerID: testOwner, MemberCount: 42},
		roles: []*discordgo.Role{
			{ID: testGuild, Name: "@everyone", Position: 0},
			{ID: "role-bot", Name: "Site-89 Bot", Position: 10, Permissions: discordgo.PermissionAdministrator},
			{ID: "role-mod", Name: "Moderator", Position: 5, Permissions: discordgo.PermissionModerateMembers | discordgo.PermissionKickMembers},
			{ID: "role-member", Name: "Level-1", Position: 1},
		},
		members: map[string]*discordgo.Member{
			testBotID: {User: &discordgo.User{ID: testBotID}, Roles: []string{"role-bot"}},
			"mod":     {User: &discordgo.User{ID: "mod"}, Roles: []string{"role-mod"}},
			"target":  {User: &discordgo.User{ID: "target", Username: "dclass"}, Roles: []string{"role-member"}},
		},
		messages: make(map[string]*discordgo.Message),
		lockErrs: make(map[string]error),
	}
}

func (f *fakeClient) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) BotUserID() string { return testBotID }

func (f *fakeClient) Latency() time.Duration { return 42 * time.Millisecond }

func (f *fakeClient) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("guild")
	if guildID != f.guild.ID {
		return nil, ErrNotFound
	}
	return f.guild, nil
}

func (f *fakeClient) GuildRoles(_ context.Context, _ string) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("roles")
	return f.roles, nil
}

func (f *fakeClient) Member(_ context.Context, _ string, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("member")
	member, ok := f.members[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return member, nil
}

func (f *fakeClient) Channel(_ context.Context, channelID string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("channel")
	return &discordgo.Channel{ID: channelID, GuildID: testGuild}, nil
}

func (f *fakeClient) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("send")
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.seq++
	sent := &discordgo.Message{ID: fmt.Sprintf("m%d", f.seq), ChannelID: channelID, Content: msg.Content, Embeds: msg.Embeds}
	f.messages[sent.ID] = sent
	f.sent = append(f.sent, msg)
	return sent, nil
}

func (f *fakeClient) Message(_ context.Context, _ string, messageID string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("message")
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

func (f *fakeClient) EditEmbeds(_ context.Context, _ string, messageID string, embeds []*discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("edit")
	msg, ok := f.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Embeds = embeds
	return nil
}

func (f *fakeClient) AttachComponents(_ context.Context, _ string, messageID string, components []discordgo.MessageComponent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("components")
	msg, ok := f.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Components = components
	return nil
}

func (f *fakeClient) DirectMessage(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("dm")
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms = append(f.dms, userID+": "+content)
	return nil
}

func (f *fakeClient) AddRole(_ context.Context, _, userID, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("addrole")
	f.added = append(f.added, userID+"/"+roleID)
	return nil
}

func (f *fakeClient) RemoveRole(_ context.Context, _, userID, roleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("removerole")
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, userID+"/"+roleID)
	return nil
}

func (f *fakeClient) SetSendLocked(_ context.Context, channelID, _ string, _ bool, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("lock")
	return f.lockErrs[channelID]
}

func (f *fakeClient) Ban(_ context.Context, _, _, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ban")
	return nil
}

func (f *fakeClient) Kick(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("kick")
	f.kicks = append(f.kicks, userID)
	return nil
}

func (f *fakeClient) Timeout(_ context.Context, _, userID string, until *time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("timeout")
	entry := userID + " cleared"
	if until != nil {
		entry = userID + " until " + until.UTC().Format(time.RFC3339)
	}
	f.timeouts = append(f.timeouts, entry)
	return nil
}

var errBoom = errors.New("boom")

func newTestBot(t *testing.T, client *fakeClient, configure func(*config.Config)) *Bot {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.GuildID = testGuild
	cfg.Roles.SSUHostRoleID = hostRole
	if configure != nil {
		configure(&cfg)
	}

	backend, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	store := storage.New(backend, zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })

	b := newBot(cfg, zap.NewNop(), store, audit.NewLogger(zap.NewNop()), client)
	b.stats = func(context.Context) systemStats { return systemStats{RSSBytes: 64 << 20, Platform: "test"} }
	now := time.Unix(1700000000, 0)
	b.now = func() time.Time { return now }
	b.started = now.Add(-90 * time.Minute)
	return b
}

func request(name string, invoker Invoker) *Request {
	return &Request{Name: name, GuildID: testGuild, ChannelID: testChannel, Invoker: invoker}
}

func moderator() Invoker {
	return Invoker{
		ID:          "mod",
		Username:    "mod",
		Permissions: discordgo.PermissionModerateMembers | discordgo.PermissionKickMembers,
		Roles:       []gate.Role{{ID: "role-mod", Name: "Moderator"}},
	}
}
