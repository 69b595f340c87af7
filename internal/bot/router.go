package bot

import (
	"context"
	"fmt"
	"sort"

	"site89-bot/internal/gate"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	replyGenericFailure = "❌ Something went wrong running that command."
	replyNotInGuild     = "❌ Use this in a server."
)

type Invoker struct {
	ID          string
	Username    string
	Permissions int64
	Roles       []gate.Role
}

type UserOption struct {
	ID       string
	Username string
}

type RoleOption struct {
	ID       string
	Name     string
	Position int
}

// Options holds the typed values of one command invocation.
type Options struct {
	strings map[string]string
	ints    map[string]int64
	users   map[string]UserOption
	roles   map[string]RoleOption
}

func (o *Options) SetString(name, value string) {
	if o.strings == nil {
		o.strings = make(map[string]string)
	}
	o.strings[name] = value
}

func (o *Options) SetInt(name string, value int64) {
	if o.ints == nil {
		o.ints = make(map[string]int64)
	}
	o.ints[name] = value
}

func (o *Options) SetUser(name string, value UserOption) {
	if o.users == nil {
		o.users = make(map[string]UserOption)
	}
	o.users[name] = value
}

func (o *Options) SetRole(name string, value RoleOption) {
	if o.roles == nil {
		o.roles = make(map[string]RoleOption)
	}
	o.roles[name] = value
}

func (o Options) String(name string) (string, bool) {
	value, ok := o.strings[name]
	return value, ok
}

// StringOr returns fallback when the option is absent or blank.
func (o Options) StringOr(name, fallback string) string {
	if value, ok := o.strings[name]; ok && value != "" {
		return value
	}
	return fallback
}

func (o Options) Int(name string) (int64, bool) {
	value, ok := o.ints[name]
	return value, ok
}

func (o Options) User(name string) (UserOption, bool) {
	value, ok := o.users[name]
	return value, ok
}

func (o Options) Role(name string) (RoleOption, bool) {
	value, ok := o.roles[name]
	return value, ok
}

type Request struct {
	Name       string
	Subcommand string
	GuildID    string
	ChannelID  string
	Invoker    Invoker
	Options    Options
}

func (r *Request) subject() gate.Subject {
	return gate.Subject{
		GuildID:     r.GuildID,
		UserID:      r.Invoker.ID,
		Permissions: r.Invoker.Permissions,
		Roles:       r.Invoker.Roles,
	}
}

// Reply is the private acknowledgement shown to the invoking user.
type Reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

func textReply(format string, args ...any) *Reply {
	return &Reply{Content: fmt.Sprintf(format, args...)}
}

type Handler func(ctx context.Context, req *Request) (*Reply, error)

// Command binds a name to its gate and handler. Subpolicies override Policy
// for individual subcommands.
type Command struct {
	Name        string
	Policy      gate.Policy
	Subpolicies map[string]gate.Policy
	Run         Handler
}

func (c Command) policyFor(subcommand string) gate.Policy {
	if policy, ok := c.Subpolicies[subcommand]; ok {
		return policy
	}
	return c.Policy
}

type Router struct {
	logger   *zap.Logger
	commands map[string]Command
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger, commands: make(map[string]Command)}
}

// Register panics on duplicate names; the registry is built once at startup.
func (r *Router) Register(cmd Command) {
	if _, exists := r.commands[cmd.Name]; exists {
		panic(fmt.Sprintf("bot: command %q registered twice", cmd.Name))
	}
	r.commands[cmd.Name] = cmd
}

func (r *Router) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the gate and then the handler. It always returns a reply:
// denials, handler errors and panics become user-facing messages.
func (r *Router) Dispatch(ctx context.Context, req *Request) (reply *Reply) {
	logger := r.logger.With(
		zap.String("command", req.Name),
		zap.String("subcommand", req.Subcommand),
		zap.String("guild_id", req.GuildID),
		zap.String("user_id", req.Invoker.ID),
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("command panicked", zap.Any("panic", recovered), zap.Stack("stack"))
			reply = &Reply{Content: replyGenericFailure}
		}
	}()

	if req.GuildID == "" {
		return &Reply{Content: replyNotInGuild}
	}

	cmd, ok := r.commands[req.Name]
	if !ok {
		logger.Warn("unknown command")
		return textReply("❌ Unknown command /%s.", req.Name)
	}

	if policy := cmd.policyFor(req.Subcommand); policy != nil {
		decision := policy.Check(ctx, req.subject())
		if !decision.Allowed {
			if decision.Err != nil {
				logger.Error("command gate failed", zap.Error(decision.Err))
			} else {
				logger.Info("command denied", zap.String("reason", decision.Reason))
			}
			return &Reply{Content: decision.Reason}
		}
	}

	out, err := cmd.Run(ctx, req)
	if err != nil {
		logger.Error("command failed", zap.Error(err))
		return &Reply{Content: replyGenericFailure}
	}
	if out == nil {
		return &Reply{Content: "✅ Done."}
	}
	return out
}
