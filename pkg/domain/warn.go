package domain

// WarnRecord is the warning counter of one user in one guild.
type WarnRecord struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Count   int    `json:"count"`
}

// WarnResult is returned by the warn ledger for every warning.
type WarnResult struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	// NewCount is the count reached by this warning, before any escalation reset.
	NewCount int `json:"new_count"`
	MaxWarns int `json:"max_warns"`
	// AutoMuted is true when this warning crossed the threshold, even if the mute failed.
	AutoMuted bool `json:"auto_muted"`
	// Mute holds the escalation outcome when AutoMuted is true.
	Mute *ActionOutcome `json:"mute,omitempty"`
}
