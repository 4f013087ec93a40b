package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/purge"
)

// Default identities used by the shell.
const (
	DefaultOperator = "operator"
	DefaultGuild    = "guild"
	DefaultChannel  = "general"
)

const help = `commands:
  post <channel> <author> [bot]         add a message to a channel
  warn <user>                           warn a member
  warns <user>                          show warn count
  clearwarns <user>                     reset warn count
  maxwarns <n>                          set the guild threshold
  ban|kick|mute|unmute <user> [reason]  moderate a member
  purge <count> [all|bot|human|user <id>]
  nuke [channel]                        replace a channel by a blank clone
  sessions                              list pending prompts
  resolve <session> <choice> [actor]    answer a prompt
  as <user>                             change the operator identity
  quit`

// Shell is a line-oriented operator console driving an Engine.
type Shell struct {
	engine   *warden.Engine
	platform *Platform
	logger   *slog.Logger
	operator string
	guild    string

	mu      sync.Mutex
	channel string
}

// ShellOption configures the Shell.
type ShellOption func(*Shell)

// WithShellLogger sets the shell logger.
func WithShellLogger(logger *slog.Logger) ShellOption {
	return func(s *Shell) {
		s.logger = logger
	}
}

// WithGuild sets the guild commands apply to.
func WithGuild(guildID string) ShellOption {
	return func(s *Shell) {
		s.guild = guildID
	}
}

// NewShell creates a shell. The platform must be the one the engine was built with.
func NewShell(engine *warden.Engine, platform *Platform, opts ...ShellOption) *Shell {
	s := &Shell{
		engine:   engine,
		platform: platform,
		logger:   logging.NewNop(),
		operator: DefaultOperator,
		guild:    DefaultGuild,
		channel:  DefaultChannel,
	}
	for _, opt := range opts {
		opt(s)
	}
	platform.AddChannel(s.channel)
	return s
}

func (s *Shell) currentChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// follow moves the shell to the clone when the current channel was replaced.
func (s *Shell) follow(old, clone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == old {
		s.channel = clone
	}
	return s.channel
}

// Run reads commands from in until EOF, "quit" or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := s.Exec(ctx, line); err != nil {
			s.platform.Println("error: " + err.Error())
		}
	}
	return scanner.Err()
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	s.logger.Debug("console command", "cmd", cmd, "args", args)

	switch cmd {
	case "help":
		s.platform.Println(help)
		return nil
	case "as":
		if len(args) != 1 {
			return usage("as <user>")
		}
		s.operator = args[0]
		return nil
	case "post":
		return s.post(args)
	case "warn":
		return s.warn(ctx, args)
	case "warns":
		return s.warns(ctx, args)
	case "clearwarns":
		if len(args) != 1 {
			return usage("clearwarns <user>")
		}
		if err := s.engine.ClearWarns(ctx, s.guild, args[0]); err != nil {
			return err
		}
		s.platform.Println(fmt.Sprintf("Cleared warnings of <@%s>.", args[0]))
		return nil
	case "maxwarns":
		return s.maxWarns(ctx, args)
	case "purge":
		return s.purge(ctx, args)
	case "nuke":
		return s.nuke(ctx, args)
	case "sessions":
		return s.sessions()
	case "resolve":
		return s.resolve(ctx, args)
	}

	kind, err := domain.ParseActionKind(cmd)
	if err != nil {
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return s.moderate(ctx, kind, args)
}

func usage(u string) error {
	return fmt.Errorf("%w: usage: %s", domain.ErrInvalidRequest, u)
}

func (s *Shell) post(args []string) error {
	if len(args) < 2 {
		return usage("post <channel> <author> [bot]")
	}
	bot := len(args) > 2 && args[2] == "bot"
	id := s.platform.Post(args[0], args[1], bot)
	s.platform.Println(fmt.Sprintf("posted %s in #%s", id, args[0]))
	return nil
}

func (s *Shell) warn(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("warn <user>")
	}
	res, err := s.engine.Warn(ctx, s.guild, args[0])
	if err != nil {
		return err
	}
	if res.AutoMuted {
		s.platform.Println(fmt.Sprintf("<@%s> reached %d warnings and was muted.", res.UserID, res.MaxWarns))
		return nil
	}
	s.platform.Println(fmt.Sprintf("<@%s> has been warned. (%d/%d)", res.UserID, res.NewCount, res.MaxWarns))
	return nil
}

func (s *Shell) warns(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("warns <user>")
	}
	n, err := s.engine.WarnCount(ctx, s.guild, args[0])
	if err != nil {
		return err
	}
	cfg := s.engine.GuildConfig(s.guild)
	s.platform.Println(fmt.Sprintf("<@%s> has %d/%d warnings.", args[0], n, cfg.MaxWarns))
	return nil
}

func (s *Shell) maxWarns(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("maxwarns <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidRequest, args[0])
	}
	cfg, err := s.engine.SetMaxWarns(ctx, s.guild, n)
	if err != nil {
		return err
	}
	s.platform.Println(fmt.Sprintf("Max warns set to %d.", cfg.MaxWarns))
	return nil
}

func (s *Shell) moderate(ctx context.Context, kind domain.ActionKind, args []string) error {
	if len(args) < 1 {
		return usage(string(kind) + " <user> [reason]")
	}
	res, err := s.engine.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{
			Kind:         kind,
			GuildID:      s.guild,
			TargetUserID: args[0],
			Reason:       strings.Join(args[1:], " "),
		},
		InitiatorID: s.operator,
		ChannelID:   s.currentChannel(),
		GuildName:   s.guild,
	})
	s.platform.Println(res.Message)
	return err
}

func (s *Shell) purge(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("purge <count> [all|bot|human|user <id>]")
	}
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidRequest, args[0])
	}
	var name, user string
	if len(args) > 1 {
		name = args[1]
	}
	if len(args) > 2 {
		user = args[2]
	}
	filter, err := domain.ParseFilter(name, user)
	if err != nil {
		return err
	}
	res, err := s.engine.Purge(ctx, domain.PurgeRequest{
		ChannelID:      s.currentChannel(),
		RequestedCount: count,
		Filter:         filter,
	})
	if err != nil {
		return err
	}
	s.platform.Println(purge.Summary(filter, res))
	return nil
}

func (s *Shell) nuke(ctx context.Context, args []string) error {
	channel := s.currentChannel()
	target := channel
	if len(args) > 0 {
		target = args[0]
	}
	r, err := s.engine.OpenReplaceChannel(ctx, warden.ReplaceRequest{
		InitiatorID:     s.operator,
		ChannelID:       channel,
		TargetChannelID: target,
	})
	if err != nil {
		return err
	}
	go func() {
		res, err := r.Wait(context.WithoutCancel(ctx))
		switch {
		case err != nil:
			s.platform.Println("error: " + err.Error())
		case res.State == domain.StateConfirmed && res.NewChannelID != "":
			s.platform.Println(fmt.Sprintf("now in #%s", s.follow(target, res.NewChannelID)))
		}
	}()
	return nil
}

func (s *Shell) sessions() error {
	pending := s.engine.Sessions()
	if len(pending) == 0 {
		s.platform.Println("no pending prompts")
		return nil
	}
	for _, p := range pending {
		s.platform.Println(fmt.Sprintf("%s  %-12s  by <@%s>  expires %s",
			p.ID, p.Kind, p.InitiatorID, p.Deadline().Format("15:04:05")))
	}
	return nil
}

func (s *Shell) resolve(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("resolve <session> <choice> [actor]")
	}
	choice, err := domain.ParseChoice(args[1])
	if err != nil {
		return err
	}
	actor := s.operator
	if len(args) > 2 {
		actor = args[2]
	}
	res, err := s.engine.Resolve(ctx, args[0], actor, choice)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return fmt.Errorf("only the initiator may answer this prompt: %w", err)
		}
		return err
	}
	s.platform.Println(fmt.Sprintf("%s %s", res.SessionID, res.State))
	return nil
}
