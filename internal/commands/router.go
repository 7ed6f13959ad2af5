// Package commands exposes the bot controller as Discord slash commands.
package commands

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"loopmuse/internal/boterr"
	"loopmuse/pkg/logger"
	"loopmuse/pkg/metrics"
)

const msgInternal = "❌ An error occurred while running that command."

// Command is a slash command backed by a handler that produces the reply text
type Command struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption
	// Defer acknowledges the interaction before Run, for handlers that can
	// take longer than Discord's three second response window.
	Defer bool
	Run   func(ctx context.Context, opts Options) (string, error)
}

// Options gives typed access to the options an interaction was invoked with
type Options map[string]*discordgo.ApplicationCommandInteractionDataOption

// NewOptions indexes opts by name
func NewOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) Options {
	out := make(Options, len(opts))
	for _, opt := range opts {
		out[opt.Name] = opt
	}
	return out
}

// String returns the named option as a string, or "" when absent
func (o Options) String(name string) string {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionString {
		return opt.StringValue()
	}
	return ""
}

// Int returns the named option as an int and whether it was present
func (o Options) Int(name string) (int, bool) {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionInteger {
		return int(opt.IntValue()), true
	}
	return 0, false
}

// Reply is what the router sends back for an invocation
type Reply struct {
	Content   string
	Ephemeral bool
}

// Invoker identifies who ran a command
type Invoker struct {
	UserID   string
	Username string
	GuildID  string
}

// Router dispatches interactions to registered commands
type Router struct {
	ctx      context.Context
	commands map[string]*Command
	mu       sync.RWMutex
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewRouter creates a router. ctx bounds every command run through Handle.
func NewRouter(ctx context.Context, log *logger.Logger, m *metrics.Metrics) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		ctx:      ctx,
		commands: make(map[string]*Command),
		log:      log.WithComponent("commands"),
		metrics:  m,
	}
}

// Register adds cmd, replacing any command with the same name
func (r *Router) Register(cmds ...*Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range cmds {
		r.commands[cmd.Name] = cmd
	}
}

// Lookup returns the command registered under name
func (r *Router) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Definitions returns the application command definitions, sorted by name
func (r *Router) Definitions() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, cmd := range r.commands {
		defs = append(defs, &discordgo.ApplicationCommand{
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     cmd.Options,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Sync overwrites the registered application commands with ours. An empty
// guildID registers them globally.
func (r *Router) Sync(s *discordgo.Session, guildID string) error {
	defs := r.Definitions()
	created, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, defs)
	if err != nil {
		return err
	}
	r.log.Info("Commands synced", logger.Fields{
		"count":    len(created),
		"guild_id": guildID,
	})
	return nil
}

// Execute runs cmd and turns its result into a reply. Failures are shown
// only to the invoking user.
func (r *Router) Execute(ctx context.Context, cmd *Command, opts Options, who Invoker) (reply Reply) {
	start := time.Now()
	log := r.log.WithUser(who.UserID, who.Username)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Command panicked", nil, logger.Fields{"command": cmd.Name, "panic": rec})
			reply = Reply{Content: msgInternal, Ephemeral: true}
			r.metrics.RecordCommandExecution(cmd.Name, false, time.Since(start))
		}
	}()

	content, err := cmd.Run(ctx, opts)
	duration := time.Since(start)
	r.metrics.RecordCommandExecution(cmd.Name, err == nil, duration)
	log.LogCommandEvent(cmd.Name, who.UserID, who.GuildID, err == nil, duration, nil)

	if err != nil {
		boterr.Log(log, "Command failed", err, logger.Fields{"command": cmd.Name})
		r.metrics.RecordError(string(boterr.TypeOf(err)))
		return Reply{Content: boterr.UserMessage(err), Ephemeral: true}
	}
	return Reply{Content: content}
}

// Handle is the discordgo InteractionCreate handler
func (r *Router) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	cmd, ok := r.Lookup(data.Name)
	if !ok {
		r.log.Warn("Unknown command", logger.Fields{"command": data.Name})
		return
	}

	if cmd.Defer {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})
		if err != nil {
			r.log.Error("Failed to defer interaction", err, logger.Fields{"command": cmd.Name})
			return
		}
	}

	reply := r.Execute(r.ctx, cmd, NewOptions(data.Options), invokerOf(i))

	if cmd.Defer {
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply.Content}); err != nil {
			r.log.Error("Failed to edit deferred response", err, logger.Fields{"command": cmd.Name})
		}
		return
	}

	response := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Ephemeral {
		response.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: response,
	})
	if err != nil {
		r.log.Error("Failed to respond to interaction", err, logger.Fields{"command": cmd.Name})
	}
}

func invokerOf(i *discordgo.InteractionCreate) Invoker {
	who := Invoker{GuildID: i.GuildID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		who.UserID, who.Username = i.Member.User.ID, i.Member.User.Username
	case i.User != nil:
		who.UserID, who.Username = i.User.ID, i.User.Username
	}
	return who
}
