package warden

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/warden/pkg/confirm"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/notify"
)

// Resolution is the answer to Resolve for either session kind.
type Resolution struct {
	SessionID string              `json:"session_id"`
	Kind      domain.SessionKind  `json:"kind"`
	State     domain.SessionState `json:"state"`
	// Delivered and Failure describe the direct message of a Notified prompt.
	Delivered bool               `json:"delivered,omitempty"`
	Failure   domain.FailureKind `json:"failure,omitempty"`
}

// Resolve answers a pending session, dispatching on its kind.
func (e *Engine) Resolve(ctx context.Context, id, actorID string, choice domain.Choice) (Resolution, error) {
	s, err := e.registry.Get(id)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{SessionID: id, Kind: s.Kind}
	switch s.Kind {
	case domain.KindConfirmation:
		res.State, err = e.gate.Resolve(ctx, id, actorID, choice)
	case domain.KindNotification:
		var out notify.Outcome
		out, err = e.prompter.Resolve(ctx, id, actorID, choice)
		res.State, res.Delivered, res.Failure = out.State, out.Delivered, out.Failure
	default:
		err = fmt.Errorf("%w: unknown session kind %q", domain.ErrNotFound, s.Kind)
	}
	if err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// ResolveInteraction answers a session from a button custom id or a reaction.
// For reactions pass "<session id>:<emoji>".
func (e *Engine) ResolveInteraction(ctx context.Context, customID, actorID string) (Resolution, error) {
	id, choice, err := domain.ParseCustomID(customID)
	if err != nil {
		return Resolution{}, err
	}
	return e.Resolve(ctx, id, actorID, choice)
}

// ModerateRequest is an action issued by an operator from a channel.
type ModerateRequest struct {
	domain.ActionRequest
	InitiatorID string `json:"initiator_id"`
	ChannelID   string `json:"channel_id"`
	GuildName   string `json:"guild_name,omitempty"`
	TargetName  string `json:"target_name,omitempty"`
	// NotifyTimeout overrides the engine default for this prompt.
	NotifyTimeout time.Duration `json:"notify_timeout,omitempty"`
}

// ModerateResult reports the action and the prompt that followed it, if any.
type ModerateResult struct {
	Outcome      domain.ActionOutcome `json:"outcome"`
	Notification *domain.Session      `json:"notification,omitempty"`
	// Message is the operator-facing summary.
	Message string `json:"message"`
}

// Moderate executes an action and, for successful non-silent ban, kick and mute,
// opens the notification prompt. A failed action never opens a prompt.
// A request that will need a prompt is rejected before the action runs unless it names
// the initiator and the channel.
func (e *Engine) Moderate(ctx context.Context, req ModerateRequest) (ModerateResult, error) {
	if !req.Silent && req.Kind.Notifiable() && (req.InitiatorID == "" || req.ChannelID == "") {
		return ModerateResult{}, fmt.Errorf("%w: initiator and channel are required unless the action is silent",
			domain.ErrInvalidRequest)
	}
	out := e.executor.Execute(ctx, req.ActionRequest)
	res := ModerateResult{Outcome: out}

	target := req.TargetName
	if target == "" {
		target = "<@" + req.TargetUserID + ">"
	}
	if !out.Success {
		res.Message = out.Failure.Message()
		return res, nil
	}
	res.Message = fmt.Sprintf("%s %s.", req.Kind.Headline(), target)
	if req.Silent || !req.Kind.Notifiable() {
		return res, nil
	}

	s, err := e.prompter.Open(ctx, notify.Request{
		InitiatorID:  req.InitiatorID,
		ChannelID:    req.ChannelID,
		GuildID:      req.GuildID,
		GuildName:    req.GuildName,
		TargetUserID: req.TargetUserID,
		TargetName:   req.TargetName,
		Kind:         req.Kind,
		Reason:       req.Reason,
		Timeout:      req.NotifyTimeout,
	})
	if err != nil {
		// The action stands; only the prompt is missing.
		return res, fmt.Errorf("action applied but notification prompt failed: %w", err)
	}
	res.Notification = &s
	return res, nil
}

// ReplaceRequest asks to replace a channel by a blank clone.
type ReplaceRequest struct {
	InitiatorID string `json:"initiator_id"`
	// ChannelID is where the confirmation is shown.
	ChannelID string `json:"channel_id"`
	// TargetChannelID is the channel to replace; defaults to ChannelID.
	TargetChannelID string        `json:"target_channel_id,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
}

// ReplaceResult reports how a channel replacement ended.
type ReplaceResult struct {
	State        domain.SessionState `json:"state"`
	NewChannelID string              `json:"new_channel_id,omitempty"`
	Failure      domain.FailureKind  `json:"failure,omitempty"`
}

// Replacement is a channel replacement waiting on its confirmation.
type Replacement struct {
	Session domain.Session
	done    chan struct{}
	result  ReplaceResult
	err     error
}

// Wait blocks until the replacement finished or ctx is done.
func (r *Replacement) Wait(ctx context.Context) (ReplaceResult, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return ReplaceResult{}, ctx.Err()
	}
}

// ReplaceChannel opens the confirmation gate and, once confirmed, clones the target
// channel, deletes the original and announces the replacement in the clone.
func (e *Engine) ReplaceChannel(ctx context.Context, req ReplaceRequest) (ReplaceResult, error) {
	r, err := e.OpenReplaceChannel(ctx, req)
	if err != nil {
		return ReplaceResult{}, err
	}
	return r.Wait(ctx)
}

// OpenReplaceChannel is ReplaceChannel without the wait: it returns as soon as the
// confirmation is shown and finishes the workflow in the background.
func (e *Engine) OpenReplaceChannel(ctx context.Context, req ReplaceRequest) (*Replacement, error) {
	if req.TargetChannelID == "" {
		req.TargetChannelID = req.ChannelID
	}
	targetName := "this channel"
	if req.TargetChannelID != req.ChannelID {
		targetName = "<#" + req.TargetChannelID + ">"
	}

	s, err := e.gate.Open(ctx, confirm.Request{
		InitiatorID: req.InitiatorID,
		ChannelID:   req.ChannelID,
		Title:       "⚠️ Confirm nuke",
		Description: fmt.Sprintf("Are you sure you want to nuke %s? This will delete it and create a blank clone.\nReact with %s to confirm or %s to cancel.",
			targetName, domain.EmojiAffirm, domain.EmojiDeny),
		Timeout:       req.Timeout,
		CancelledText: "Nuke cancelled.",
		ExpiredText:   "Nuke cancelled (timeout).",
	})
	if err != nil {
		return nil, err
	}

	r := &Replacement{Session: s, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.result, r.err = e.finishReplace(context.WithoutCancel(ctx), s.ID, req)
	}()
	return r, nil
}

func (e *Engine) finishReplace(ctx context.Context, id string, req ReplaceRequest) (ReplaceResult, error) {
	state, err := e.gate.Await(ctx, id)
	if err != nil {
		return ReplaceResult{}, err
	}
	res := ReplaceResult{State: state}
	if state != domain.StateConfirmed {
		return res, nil
	}

	logger := e.logger.With("session_id", id, "channel_id", req.TargetChannelID)
	clone, err := e.platform.CloneChannel(ctx, req.TargetChannelID)
	if err != nil {
		return e.replaceFailed(ctx, res, req, "", fmt.Errorf("failed to clone channel: %w", err))
	}
	res.NewChannelID = clone

	if err := e.platform.DeleteChannel(ctx, req.TargetChannelID); err != nil {
		return e.replaceFailed(ctx, res, req, clone, fmt.Errorf("failed to delete channel: %w", err))
	}
	if _, err := e.platform.SendMessage(ctx, clone, fmt.Sprintf("<#%s> has been nuked! 💥💣", clone)); err != nil {
		logger.Warn("Failed to announce replaced channel", "err", err)
	}

	logger.Info("Channel replaced", "new_channel_id", clone)
	return res, nil
}

// replaceFailed tells the operator why the replacement stopped, in the channel the
// command came from or, when that one is gone, in the clone.
func (e *Engine) replaceFailed(ctx context.Context, res ReplaceResult, req ReplaceRequest, clone string, err error) (ReplaceResult, error) {
	res.Failure = domain.Classify(err)
	e.logger.Warn("Channel replacement failed", "channel_id", req.TargetChannelID, "err", err)

	notice := res.Failure.Message()
	if _, sendErr := e.platform.SendMessage(ctx, req.ChannelID, notice); sendErr != nil && clone != "" {
		_, _ = e.platform.SendMessage(ctx, clone, notice)
	}
	return res, err
}
