// Package mcp exposes moderation tools to agents over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/internal/logging"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/purge"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionsURI is the resource listing pending prompts.
const SessionsURI = "warden://sessions"

// Engine is the part of warden.Engine exposed as tools.
type Engine interface {
	GuildConfig(guildID string) domain.GuildConfig
	SetMaxWarns(ctx context.Context, guildID string, n int) (domain.GuildConfig, error)
	Warn(ctx context.Context, guildID, userID string) (domain.WarnResult, error)
	WarnCount(ctx context.Context, guildID, userID string) (int, error)
	ClearWarns(ctx context.Context, guildID, userID string) error
	Purge(ctx context.Context, req domain.PurgeRequest) (domain.PurgeResult, error)
	Sessions() []domain.Session
	Resolve(ctx context.Context, id, actorID string, choice domain.Choice) (warden.Resolution, error)
}

var _ Engine = (*warden.Engine)(nil)

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("warden-mcp", strings.TrimSpace(warden.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Tool arguments.
type (
	memberArgs struct {
		GuildID string `json:"guild_id"`
		UserID  string `json:"user_id"`
	}
	guildArgs struct {
		GuildID string `json:"guild_id"`
	}
	maxWarnsArgs struct {
		GuildID  string `json:"guild_id"`
		MaxWarns int    `json:"max_warns"`
	}
	purgeArgs struct {
		ChannelID string `json:"channel_id"`
		Count     int    `json:"count"`
		Filter    string `json:"filter"`
		UserID    string `json:"user_id"`
	}
	resolveArgs struct {
		SessionID string `json:"session_id"`
		ActorID   string `json:"actor_id"`
		Choice    string `json:"choice"`
	}
)

// WarnCountResponse is returned by get_warn_count and clear_warns.
type WarnCountResponse struct {
	GuildID  string `json:"guild_id" jsonschema_description:"Guild the count belongs to"`
	UserID   string `json:"user_id" jsonschema_description:"Member the count belongs to"`
	Count    int    `json:"count" jsonschema_description:"Current number of warnings"`
	MaxWarns int    `json:"max_warns" jsonschema_description:"Warnings that trigger an automatic mute"`
}

// PurgeResponse is returned by purge_messages.
type PurgeResponse struct {
	Deleted int    `json:"deleted" jsonschema_description:"Qualifying messages removed"`
	Summary string `json:"summary" jsonschema_description:"Operator-facing summary"`
}

// SessionList is returned by list_sessions.
type SessionList struct {
	Sessions []domain.Session `json:"sessions" jsonschema_description:"Pending prompts, oldest first"`
}

func guildParam() mcp.ToolOption {
	return mcp.WithString("guild_id", mcp.Required(), mcp.Description("Guild (server) id"))
}

func userParam() mcp.ToolOption {
	return mcp.WithString("user_id", mcp.Required(), mcp.Description("Member id"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("warn_user",
		mcp.WithDescription("Warn a member. Reaching the guild threshold mutes them and resets the count."),
		guildParam(), userParam(),
		mcp.WithOutputSchema[domain.WarnResult](),
	), mcp.NewStructuredToolHandler(s.handleWarn))

	s.mcpServer.AddTool(mcp.NewTool("get_guild_config",
		mcp.WithDescription("Get the effective moderation settings of a guild."),
		guildParam(),
		mcp.WithOutputSchema[domain.GuildConfig](),
	), mcp.NewStructuredToolHandler(s.handleGetConfig))

	s.mcpServer.AddTool(mcp.NewTool("set_max_warns",
		mcp.WithDescription("Set how many warnings trigger an automatic mute (at least 1)."),
		guildParam(),
		mcp.WithNumber("max_warns", mcp.Required(), mcp.Description("New threshold"), mcp.Min(1)),
		mcp.WithOutputSchema[domain.GuildConfig](),
	), mcp.NewStructuredToolHandler(s.handleSetMaxWarns))

	s.mcpServer.AddTool(mcp.NewTool("get_warn_count",
		mcp.WithDescription("Get the current warning count of a member."),
		guildParam(), userParam(),
		mcp.WithOutputSchema[WarnCountResponse](),
	), mcp.NewStructuredToolHandler(s.handleWarnCount))

	s.mcpServer.AddTool(mcp.NewTool("clear_warns",
		mcp.WithDescription("Reset the warning count of a member."),
		guildParam(), userParam(),
		mcp.WithOutputSchema[WarnCountResponse](),
	), mcp.NewStructuredToolHandler(s.handleClearWarns))

	s.mcpServer.AddTool(mcp.NewTool("purge_messages",
		mcp.WithDescription("Delete up to 100 recent messages matching a filter."),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Channel to clean")),
		mcp.WithNumber("count", mcp.Required(), mcp.Description("Messages to delete, clamped to 1..100")),
		mcp.WithString("filter", mcp.Description("Which messages qualify"), mcp.Enum("all", "bot", "human", "user")),
		mcp.WithString("user_id", mcp.Description("Author to match when filter is user")),
		mcp.WithOutputSchema[PurgeResponse](),
	), mcp.NewStructuredToolHandler(s.handlePurge))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List pending confirmation and notification prompts."),
		mcp.WithOutputSchema[SessionList](),
	), mcp.NewStructuredToolHandler(s.handleListSessions))

	s.mcpServer.AddTool(mcp.NewTool("resolve_session",
		mcp.WithDescription("Answer a pending prompt on behalf of its initiator."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Prompt session id")),
		mcp.WithString("actor_id", mcp.Required(), mcp.Description("Who answers; must be the initiator")),
		mcp.WithString("choice", mcp.Required(), mcp.Description("affirm, deny, notify or suppress"),
			mcp.Enum(string(domain.ChoiceAffirm), string(domain.ChoiceDeny), string(domain.ChoiceNotify), string(domain.ChoiceSuppress))),
		mcp.WithOutputSchema[warden.Resolution](),
	), mcp.NewStructuredToolHandler(s.handleResolve))
}

func (s *Server) handleWarn(ctx context.Context, _ mcp.CallToolRequest, args memberArgs) (domain.WarnResult, error) {
	res, err := s.engine.Warn(ctx, args.GuildID, args.UserID)
	if err != nil {
		return domain.WarnResult{}, fmt.Errorf("warn failed: %w", err)
	}
	s.logger.Info("MCP warn", "guild_id", args.GuildID, "user_id", args.UserID, "count", res.NewCount)
	return res, nil
}

func (s *Server) handleGetConfig(_ context.Context, _ mcp.CallToolRequest, args guildArgs) (domain.GuildConfig, error) {
	return s.engine.GuildConfig(args.GuildID), nil
}

func (s *Server) handleSetMaxWarns(ctx context.Context, _ mcp.CallToolRequest, args maxWarnsArgs) (domain.GuildConfig, error) {
	cfg, err := s.engine.SetMaxWarns(ctx, args.GuildID, args.MaxWarns)
	if err != nil {
		return domain.GuildConfig{}, fmt.Errorf("set max warns failed: %w", err)
	}
	return cfg, nil
}

func (s *Server) handleWarnCount(ctx context.Context, _ mcp.CallToolRequest, args memberArgs) (WarnCountResponse, error) {
	n, err := s.engine.WarnCount(ctx, args.GuildID, args.UserID)
	if err != nil {
		return WarnCountResponse{}, fmt.Errorf("get warn count failed: %w", err)
	}
	return WarnCountResponse{
		GuildID:  args.GuildID,
		UserID:   args.UserID,
		Count:    n,
		MaxWarns: s.engine.GuildConfig(args.GuildID).MaxWarns,
	}, nil
}

func (s *Server) handleClearWarns(ctx context.Context, _ mcp.CallToolRequest, args memberArgs) (WarnCountResponse, error) {
	if err := s.engine.ClearWarns(ctx, args.GuildID, args.UserID); err != nil {
		return WarnCountResponse{}, fmt.Errorf("clear warns failed: %w", err)
	}
	return WarnCountResponse{
		GuildID:  args.GuildID,
		UserID:   args.UserID,
		MaxWarns: s.engine.GuildConfig(args.GuildID).MaxWarns,
	}, nil
}

func (s *Server) handlePurge(ctx context.Context, _ mcp.CallToolRequest, args purgeArgs) (PurgeResponse, error) {
	filter, err := domain.ParseFilter(args.Filter, args.UserID)
	if err != nil {
		return PurgeResponse{}, err
	}
	res, err := s.engine.Purge(ctx, domain.PurgeRequest{
		ChannelID:      args.ChannelID,
		RequestedCount: args.Count,
		Filter:         filter,
	})
	if err != nil {
		return PurgeResponse{}, fmt.Errorf("purge failed: %w", err)
	}
	return PurgeResponse{Deleted: res.Deleted, Summary: purge.Summary(filter, res)}, nil
}

func (s *Server) handleListSessions(_ context.Context, _ mcp.CallToolRequest, _ map[string]any) (SessionList, error) {
	sessions := s.engine.Sessions()
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return SessionList{Sessions: sessions}, nil
}

func (s *Server) handleResolve(ctx context.Context, _ mcp.CallToolRequest, args resolveArgs) (warden.Resolution, error) {
	choice, err := domain.ParseChoice(args.Choice)
	if err != nil {
		return warden.Resolution{}, err
	}
	res, err := s.engine.Resolve(ctx, args.SessionID, args.ActorID, choice)
	if err != nil {
		return warden.Resolution{}, fmt.Errorf("resolve failed: %w", err)
	}
	return res, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Pending prompts",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessions := s.engine.Sessions()
		if sessions == nil {
			sessions = []domain.Session{}
		}
		jsonBytes, err := json.Marshal(sessions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sessions: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SessionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
