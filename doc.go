/*
Package warden is a moderation workflow engine for group-chat platforms.

It sequences privileged actions (ban, kick, timed mute, warning escalation, bulk
message deletion, channel replacement) with short-lived interactive sessions: a
confirmation gate in front of irreversible actions and a notify/don't-notify prompt
after reversible ones. Sessions resolve exactly once, even when an operator's click
races the timeout, and only the operator who started them may answer.

# Concept

The Engine owns the moderation state (guild settings, warning counters, pending
sessions) while the host owns the transport. The chat platform is reached through
ports.Platform and persistence through ports.GuildConfigStore and ports.WarnStore,
so the same engine runs behind a gateway bot, the HTTP API, the MCP server or the
local console.

# Usage

	platform := memory.NewPlatform()
	eng, err := warden.New(warden.WithPlatform(platform))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}

	res, err := eng.Warn(ctx, "guild-1", "user-1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.NewCount, res.AutoMuted)

Interactive sessions are answered by id, typically from a button or reaction handler:

	mod, _ := eng.Moderate(ctx, warden.ModerateRequest{
		ActionRequest: domain.ActionRequest{Kind: domain.ActionBan, GuildID: "guild-1", TargetUserID: "user-1"},
		InitiatorID:   "mod-1",
		ChannelID:     "channel-1",
	})
	_, _ = eng.Resolve(ctx, mod.Notification.ID, "mod-1", domain.ChoiceNotify)
*/
package warden
