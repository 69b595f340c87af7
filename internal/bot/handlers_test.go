package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"site89-bot/internal/config"
	"site89-bot/internal/gate"
	"site89-bot/internal/poll"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func ssuHost(id string) Invoker {
	return Invoker{ID: id, Username: id, Roles: []gate.Role{{ID: hostRole, Name: "SSU Host"}}}
}

func TestWarnPersistsWhenDMFails(t *testing.T) {
	client := newFakeClient()
	client.dmErr = errBoom
	b := newTestBot(t, client, nil)

	req := request("warn", moderator())
	req.Options.SetUser("user", UserOption{ID: "target", Username: "dclass"})
	req.Options.SetString("reason", "Breaking protocol")

	reply := b.router.Dispatch(context.Background(), req)
	if !strings.Contains(reply.Content, "**Warn ID:** 1") || !strings.Contains(reply.Content, "**Total warnings:** 1") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}

	list, err := b.store.Warnings(context.Background(), testGuild, "target")
	if err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if len(list) != 1 || list[0].Reason != "Breaking protocol" || list[0].ModeratorID != "mod" {
		t.Fatalf("warning not stored: %+v", list)
	}
}

func TestWarnRefusesHigherTarget(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	req := request("warn", moderator())
	req.Options.SetUser("user", UserOption{ID: testBotID})
	req.Options.SetString("reason", "test")

	reply := b.router.Dispatch(context.Background(), req)
	if !strings.HasPrefix(reply.Content, "❌") {
		t.Fatalf("expected refusal, got %q", reply.Content)
	}
	list, _ := b.store.Warnings(context.Background(), testGuild, testBotID)
	if len(list) != 0 {
		t.Fatalf("refused warning was stored")
	}
}

func TestWarningLifecycle(t *testing.T) {
	b := newTestBot(t, newFakeClient(), nil)
	ctx := context.Background()
	for _, reason := range []string{"one", "two"} {
		if _, _, err := b.store.AddWarning(ctx, testGuild, "target", "mod", reason); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	edit := request("editwarn", moderator())
	edit.Options.SetUser("user", UserOption{ID: "target"})
	edit.Options.SetInt("warn_id", 2)
	edit.Options.SetString("reason", "two, revised")
	if reply := b.router.Dispatch(ctx, edit); !strings.HasPrefix(reply.Content, "✅ Edited warning **#2**") {
		t.Fatalf("unexpected edit reply %q", reply.Content)
	}

	unwarn := request("unwarn", moderator())
	unwarn.Options.SetUser("user", UserOption{ID: "target"})
	unwarn.Options.SetInt("warn_id", 9)
	if reply := b.router.Dispatch(ctx, unwarn); !strings.Contains(reply.Content, "No warning found with ID **9**") {
		t.Fatalf("unexpected unwarn reply %q", reply.Content)
	}
	unwarn.Options.SetInt("warn_id", 1)
	if reply := b.router.Dispatch(ctx, unwarn); !strings.Contains(reply.Content, "Reason was: **one**") {
		t.Fatalf("unexpected unwarn reply %q", reply.Content)
	}

	list := request("warnings", moderator())
	list.Options.SetUser("user", UserOption{ID: "target", Username: "dclass"})
	reply := b.router.Dispatch(ctx, list)
	if reply.Embed == nil || !strings.Contains(reply.Embed.Description, "two, revised") || !strings.Contains(reply.Embed.Description, "Total warnings: **1**") {
		t.Fatalf("unexpected warnings embed %+v", reply.Embed)
	}

	wipe := request("clearwarns", moderator())
	wipe.Options.SetUser("user", UserOption{ID: "target"})
	if reply := b.router.Dispatch(ctx, wipe); !strings.HasPrefix(reply.Content, "✅ Cleared **1** warning(s)") {
		t.Fatalf("unexpected clear reply %q", reply.Content)
	}
}

func TestKickSendsNoticeThenKicks(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	req := request("kick", moderator())
	req.Options.SetUser("user", UserOption{ID: "target", Username: "dclass"})
	reply := b.router.Dispatch(context.Background(), req)
	if reply.Content != "✅ Kicked **dclass**. Reason: No reason provided." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if len(client.kicks) != 1 || len(client.dms) != 1 {
		t.Fatalf("expected one kick and one dm, got %v and %v", client.kicks, client.dms)
	}
}

func TestLockdownCountsOutcomes(t *testing.T) {
	client := newFakeClient()
	client.lockErrs["gone"] = ErrNotFound
	client.lockErrs["broken"] = errBoom
	b := newTestBot(t, client, func(cfg *config.Config) {
		cfg.Lockdown.ChannelIDs = []string{"ok-1", "gone", "broken", "ok-2"}
	})

	req := request("lockdown", Invoker{ID: "mod", Permissions: discordgo.PermissionManageChannels})
	req.Options.SetString("reason", "drill")
	reply := b.router.Dispatch(context.Background(), req)
	want := "✅ Locked **2** channel(s).\nReason: drill\nMissing: **1**, failed: **1**."
	if reply.Content != want {
		t.Fatalf("expected %q, got %q", want, reply.Content)
	}
}

func TestLockdownWithoutChannels(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	reply := b.router.Dispatch(context.Background(), request("unlockdown", Invoker{ID: "mod", Permissions: discordgo.PermissionAdministrator}))
	if reply.Content != "❌ No lockdown channels are configured." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
}

func TestTakeoverWithoutSavedSSU(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	reply := b.router.Dispatch(context.Background(), request("ssutakeover", ssuHost("host-2")))
	if reply.Content != "❌ No SSU message saved yet. Use /ssu first." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if client.callCount() != 0 {
		t.Fatalf("expected no discord calls, got %v", client.calls)
	}
}

func TestTakeoverRewritesSavedSSU(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)
	ctx := context.Background()

	if reply := b.router.Dispatch(ctx, request("ssu", ssuHost("host-1"))); reply.Content != "✅ SSU posted." {
		t.Fatalf("unexpected ssu reply %q", reply.Content)
	}
	if reply := b.router.Dispatch(ctx, request("ssutakeover", ssuHost("host-2"))); reply.Content != "✅ SSU takeover complete. Embed updated." {
		t.Fatalf("unexpected takeover reply %q", reply.Content)
	}

	msg := client.messages["m1"]
	if !strings.Contains(msg.Embeds[0].Description, "<@host-2>") || strings.Contains(msg.Embeds[0].Description, "<@host-1>") {
		t.Fatalf("embed not rewritten: %q", msg.Embeds[0].Description)
	}
	pointer, ok, err := b.store.AnnouncementPointer(ctx, testGuild)
	if err != nil || !ok || pointer.PostedBy != "host-2" {
		t.Fatalf("pointer not updated: %+v ok=%v err=%v", pointer, ok, err)
	}
}

func TestSSURequiresHostRole(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	reply := b.router.Dispatch(context.Background(), request("ssu", moderator()))
	if reply.Content != "❌ You need the **SSU Host** role to use this command." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
}

func TestPollVotes(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	req := request("ssupoll", ssuHost("host-1"))
	req.Options.SetString("question", "SSU at 8pm?")
	if reply := b.router.Dispatch(context.Background(), req); reply.Content != "✅ SSU poll posted." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if len(client.messages["m1"].Components) != 1 {
		t.Fatalf("vote buttons not attached")
	}

	if _, notice := b.vote("m1", "voter", poll.Join); notice != "" {
		t.Fatalf("unexpected notice %q", notice)
	}
	embed, _ := b.vote("m1", "voter", poll.Cant)
	if embed.Fields[0].Value != "0" || embed.Fields[2].Value != "1" {
		t.Fatalf("re-vote not moved: %s/%s", embed.Fields[0].Value, embed.Fields[2].Value)
	}
	if !strings.Contains(embed.Description, "SSU at 8pm?") {
		t.Fatalf("question missing from %q", embed.Description)
	}

	embed, notice := b.vote("m404", "voter", poll.Join)
	if embed != nil || notice != "❌ This poll expired (bot restarted)." {
		t.Fatalf("expected expiry notice, got %q", notice)
	}
}

func TestSSUPingCooldownIsShared(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)
	ctx := context.Background()
	member := Invoker{ID: "u1", Username: "u1"}

	if reply := b.router.Dispatch(ctx, request("ssubeg", member)); reply.Content != "✅ SSU beg sent." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if reply := b.router.Dispatch(ctx, request("ssurevive", member)); !strings.HasPrefix(reply.Content, "⏳") {
		t.Fatalf("expected cooldown, got %q", reply.Content)
	}

	later := b.now().Add(10 * time.Minute)
	b.now = func() time.Time { return later }
	if reply := b.router.Dispatch(ctx, request("ssurevive", member)); reply.Content != "✅ SSU revive ping sent." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if len(client.sent) != 2 {
		t.Fatalf("expected 2 pings, got %d", len(client.sent))
	}
}

func TestStoredClearanceGatesAnnounce(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, func(cfg *config.Config) {
		cfg.Clearance.Source = "store"
	})
	ctx := context.Background()
	staff := Invoker{ID: "staff", Permissions: discordgo.PermissionManageRoles}

	set := request("clearance", staff)
	set.Subcommand = "set"
	set.Options.SetUser("user", UserOption{ID: "target", Username: "dclass"})
	set.Options.SetString("level", "L9")
	if reply := b.router.Dispatch(ctx, set); !strings.HasPrefix(reply.Content, "❌ Invalid clearance level") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	set.Options.SetString("level", "L4")
	if reply := b.router.Dispatch(ctx, set); !strings.HasPrefix(reply.Content, "✅ Set **dclass**") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}

	announce := request("announce", Invoker{ID: "target", Username: "dclass"})
	announce.Options.SetString("message", "hello")
	if reply := b.router.Dispatch(ctx, announce); reply.Content != "✅ announce sent." {
		t.Fatalf("stored L4 should allow announce, got %q", reply.Content)
	}
}

func TestStatusAndServerInfo(t *testing.T) {
	b := newTestBot(t, newFakeClient(), nil)
	ctx := context.Background()

	status := b.router.Dispatch(ctx, request("status", Invoker{ID: "u1"}))
	if status.Embed == nil || len(status.Embed.Fields) != 6 || status.Embed.Fields[2].Value != "64 MB" {
		t.Fatalf("unexpected status embed %+v", status.Embed)
	}
	info := b.router.Dispatch(ctx, request("serverinfo", Invoker{ID: "u1"}))
	if info.Embed == nil || info.Embed.Fields[1].Value != "42" {
		t.Fatalf("unexpected serverinfo embed %+v", info.Embed)
	}
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 5 * time.Second, want: "5s"},
		{in: 61 * time.Second, want: "1m 1s"},
		{in: 26*time.Hour + 3*time.Minute, want: "1d 2h 3m 0s"},
		{in: 2*time.Hour + 500*time.Millisecond, want: "2h 0s"},
	}
	for _, tc := range cases {
		if got := formatUptime(tc.in); got != tc.want {
			t.Fatalf("formatUptime(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestModLogReceivesAuditEntries(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, func(cfg *config.Config) {
		cfg.Notifications.ModLogChannel = "modlog"
		cfg.Notifications.DMNoticeEnabled = false
	})

	req := request("timeout", moderator())
	req.Options.SetUser("user", UserOption{ID: "target"})
	req.Options.SetInt("minutes", 30)
	if reply := b.router.Dispatch(context.Background(), req); !strings.HasPrefix(reply.Content, "✅ Timed out") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}

	if len(client.sent) != 1 {
		t.Fatalf("expected one mod-log post, got %d", len(client.sent))
	}
	embed := client.sent[0].Embeds[0]
	if embed.Title != "🛡️ timeout" || embed.Fields[1].Value != "<@target>" {
		t.Fatalf("unexpected mod-log embed %+v", embed)
	}
	if len(client.dms) != 0 {
		t.Fatalf("dm notices disabled but sent %v", client.dms)
	}
}

func TestTimeoutRejectsOutOfRangeMinutes(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)

	req := request("timeout", moderator())
	req.Options.SetUser("user", UserOption{ID: "target"})
	req.Options.SetInt("minutes", maxTimeoutMinutes+1)
	if reply := b.router.Dispatch(context.Background(), req); reply.Content != "❌ minutes must be between 1 and 40320." {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if client.callCount() != 0 {
		t.Fatalf("invalid timeout touched discord: %v", client.calls)
	}
}

func TestTimeoutWithAdministratorBot(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)
	ctx := context.Background()

	h, err := b.loadHierarchy(ctx, testGuild)
	if err != nil {
		t.Fatalf("load hierarchy: %v", err)
	}
	self := client.members[testBotID]
	if !h.allows(self, discordgo.PermissionModerateMembers) {
		t.Fatalf("administrator bot should hold Timeout Members")
	}

	req := request("timeout", moderator())
	req.Options.SetUser("user", UserOption{ID: "target", Username: "dclass"})
	req.Options.SetInt("minutes", 30)
	reply := b.router.Dispatch(ctx, req)
	if !strings.HasPrefix(reply.Content, "✅ Timed out") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	want := "target until " + b.now().Add(30*time.Minute).UTC().Format(time.RFC3339)
	if len(client.timeouts) != 1 || client.timeouts[0] != want {
		t.Fatalf("expected %q, got %v", want, client.timeouts)
	}
}

func TestSSUPingReleasesCooldownWhenSendFails(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, nil)
	ctx := context.Background()
	member := Invoker{ID: "u1", Username: "u1"}

	client.sendErr = errBoom
	if reply := b.router.Dispatch(ctx, request("ssubeg", member)); reply.Content != replyGenericFailure {
		t.Fatalf("expected generic failure, got %q", reply.Content)
	}

	client.sendErr = nil
	if reply := b.router.Dispatch(ctx, request("ssubeg", member)); reply.Content != "✅ SSU beg sent." {
		t.Fatalf("failed ping should not start the cooldown, got %q", reply.Content)
	}
	if reply := b.router.Dispatch(ctx, request("ssurevive", member)); !strings.HasPrefix(reply.Content, "⏳") {
		t.Fatalf("expected cooldown after a delivered ping, got %q", reply.Content)
	}
}

func TestClearanceSyncLogsRoleRemovalFailure(t *testing.T) {
	client := newFakeClient()
	b := newTestBot(t, client, func(cfg *config.Config) {
		cfg.Clearance.RoleIDs = map[string]string{"L3": "role-l3", "L4": "role-l4"}
	})
	client.roles = append(client.roles,
		&discordgo.Role{ID: "role-l3", Name: "Level-3", Position: 2},
		&discordgo.Role{ID: "role-l4", Name: "Level-4", Position: 3},
	)
	client.members["target"].Roles = append(client.members["target"].Roles, "role-l3")
	client.removeErr = errBoom

	core, logs := observer.New(zap.InfoLevel)
	b.logger = zap.New(core)

	set := request("clearance", Invoker{ID: "staff", Permissions: discordgo.PermissionManageRoles})
	set.Subcommand = "set"
	set.Options.SetUser("user", UserOption{ID: "target", Username: "dclass"})
	set.Options.SetString("level", "L4")
	reply := b.router.Dispatch(context.Background(), set)
	if !strings.HasPrefix(reply.Content, "✅ Set **dclass**") || strings.Contains(reply.Content, "Role not synced") {
		t.Fatalf("unexpected reply %q", reply.Content)
	}

	entries := logs.FilterMessage("remove old clearance role failed").All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Fatalf("expected one warning, got %+v", logs.All())
	}
	fields := entries[0].ContextMap()
	if fields["role_id"] != "role-l3" || fields["error"] != errBoom.Error() {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if len(client.added) != 1 || client.added[0] != "target/role-l4" {
		t.Fatalf("expected new role added, got %v", client.added)
	}
}
