package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/warden"
	"github.com/aretw0/warden/pkg/confirm"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/notify"
	"github.com/aretw0/warden/pkg/purge"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetGuildConfig handles GET /guilds/{guildID}/config.
func (s *Server) GetGuildConfig(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathParam(r, "guildID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.GuildConfig(guildID))
}

type putConfigBody struct {
	MaxWarns int `json:"max_warns"`
}

// PutGuildConfig handles PUT /guilds/{guildID}/config.
func (s *Server) PutGuildConfig(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathParam(r, "guildID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body putConfigBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	cfg, err := s.Engine.SetMaxWarns(r.Context(), guildID, body.MaxWarns)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type warnBody struct {
	UserID string `json:"user_id"`
}

// WarnUser handles POST /guilds/{guildID}/warns.
func (s *Server) WarnUser(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathParam(r, "guildID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body warnBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.Engine.Warn(r.Context(), guildID, body.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetWarnCount handles GET /guilds/{guildID}/warns/{userID}.
func (s *Server) GetWarnCount(w http.ResponseWriter, r *http.Request) {
	ids, err := pathParams(r, "guildID", "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	guildID, userID := ids[0], ids[1]
	n, err := s.Engine.WarnCount(r.Context(), guildID, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.WarnRecord{GuildID: guildID, UserID: userID, Count: n})
}

// ClearWarns handles DELETE /guilds/{guildID}/warns/{userID}.
func (s *Server) ClearWarns(w http.ResponseWriter, r *http.Request) {
	ids, err := pathParams(r, "guildID", "userID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Engine.ClearWarns(r.Context(), ids[0], ids[1]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moderateBody struct {
	Kind            domain.ActionKind `json:"kind"`
	UserID          string            `json:"user_id"`
	Reason          string            `json:"reason"`
	DurationSeconds int               `json:"duration_seconds"`
	Silent          bool              `json:"silent"`
	InitiatorID     string            `json:"initiator_id"`
	ChannelID       string            `json:"channel_id"`
	GuildName       string            `json:"guild_name"`
	TargetName      string            `json:"target_name"`
}

// Moderate handles POST /guilds/{guildID}/actions. A failed action answers with the
// status of its failure kind and the operator message in the body.
func (s *Server) Moderate(w http.ResponseWriter, r *http.Request) {
	guildID, err := pathParam(r, "guildID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body moderateBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.Engine.Moderate(r.Context(), warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{
			Kind:         body.Kind,
			GuildID:      guildID,
			TargetUserID: body.UserID,
			Reason:       body.Reason,
			Duration:     seconds(body.DurationSeconds),
			Silent:       body.Silent,
		},
		InitiatorID: body.InitiatorID,
		ChannelID:   body.ChannelID,
		GuildName:   body.GuildName,
		TargetName:  body.TargetName,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if !res.Outcome.Success {
		status = statusFor(res.Outcome.Failure.Err())
	}
	writeJSON(w, status, res)
}

type replaceBody struct {
	InitiatorID     string `json:"initiator_id"`
	PromptChannelID string `json:"prompt_channel_id"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

// ReplaceChannel handles POST /guilds/{guildID}/channels/{channelID}/replace.
// It answers once the confirmation is shown; the replacement itself runs after
// the initiator confirms.
func (s *Server) ReplaceChannel(w http.ResponseWriter, r *http.Request) {
	target, err := pathParam(r, "channelID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body replaceBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	prompt := body.PromptChannelID
	if prompt == "" {
		prompt = target
	}
	rep, err := s.Engine.OpenReplaceChannel(r.Context(), warden.ReplaceRequest{
		InitiatorID:     body.InitiatorID,
		ChannelID:       prompt,
		TargetChannelID: target,
		Timeout:         seconds(body.TimeoutSeconds),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	go func() {
		res, err := rep.Wait(context.WithoutCancel(r.Context()))
		if err != nil {
			s.logger.Error("channel replacement failed", "session_id", rep.Session.ID, "err", err)
			return
		}
		s.logger.Info("channel replacement finished",
			"session_id", rep.Session.ID, "state", res.State, "new_channel_id", res.NewChannelID, "failure", res.Failure)
	}()

	writeJSON(w, http.StatusAccepted, rep.Session)
}

type purgeBody struct {
	Count            int    `json:"count"`
	Filter           string `json:"filter"`
	UserID           string `json:"user_id"`
	ExcludeMessageID string `json:"exclude_message_id"`
}

type purgeResponse struct {
	Deleted int    `json:"deleted"`
	Summary string `json:"summary"`
}

// PurgeMessages handles POST /channels/{channelID}/purge.
func (s *Server) PurgeMessages(w http.ResponseWriter, r *http.Request) {
	channelID, err := pathParam(r, "channelID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body purgeBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	filter, err := domain.ParseFilter(body.Filter, body.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.Engine.Purge(r.Context(), domain.PurgeRequest{
		ChannelID:        channelID,
		RequestedCount:   body.Count,
		Filter:           filter,
		ExcludeMessageID: body.ExcludeMessageID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Deleted: res.Deleted, Summary: purge.Summary(filter, res)})
}

type confirmationBody struct {
	InitiatorID    string `json:"initiator_id"`
	ChannelID      string `json:"channel_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// OpenConfirmation handles POST /confirmations.
func (s *Server) OpenConfirmation(w http.ResponseWriter, r *http.Request) {
	var body confirmationBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.Engine.OpenConfirmation(r.Context(), confirm.Request{
		InitiatorID: body.InitiatorID,
		ChannelID:   body.ChannelID,
		Title:       body.Title,
		Description: body.Description,
		Timeout:     seconds(body.TimeoutSeconds),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type notificationBody struct {
	InitiatorID    string            `json:"initiator_id"`
	ChannelID      string            `json:"channel_id"`
	GuildID        string            `json:"guild_id"`
	GuildName      string            `json:"guild_name"`
	UserID         string            `json:"user_id"`
	TargetName     string            `json:"target_name"`
	Kind           domain.ActionKind `json:"kind"`
	Reason         string            `json:"reason"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// OpenNotification handles POST /notifications.
func (s *Server) OpenNotification(w http.ResponseWriter, r *http.Request) {
	var body notificationBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.Engine.OpenNotification(r.Context(), notify.Request{
		InitiatorID:  body.InitiatorID,
		ChannelID:    body.ChannelID,
		GuildID:      body.GuildID,
		GuildName:    body.GuildName,
		TargetUserID: body.UserID,
		TargetName:   body.TargetName,
		Kind:         body.Kind,
		Reason:       body.Reason,
		Timeout:      seconds(body.TimeoutSeconds),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.Engine.Sessions()
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /sessions/{sessionID}. With wait=true it blocks until the
// session is terminal or the client goes away.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "sessionID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wait, err := waitParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wait {
		if _, err := s.Engine.Await(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	sess, err := s.Engine.Session(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type resolveBody struct {
	ActorID string `json:"actor_id"`
	Choice  string `json:"choice"`
}

// ResolveSession handles POST /sessions/{sessionID}/resolve.
func (s *Server) ResolveSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "sessionID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var body resolveBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	choice, err := domain.ParseChoice(body.Choice)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.Engine.Resolve(r.Context(), id, body.ActorID, choice)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
