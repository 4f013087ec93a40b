/*
Package domain contains the core domain models of the Warden moderation engine.

It defines the entities the workflow engine reasons about: guild settings, warning
records, privileged actions and their outcomes, interactive sessions and purge requests.
This package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - GuildConfig: per-guild moderation settings (maximum warn count).
  - WarnRecord: per (guild, user) warning counter owned by the warn ledger.
  - ActionRequest / ActionOutcome: a single privileged action and its normalized result.
  - SessionState / Choice: the single-claim state machine shared by confirmation gates
    and notification prompts.
  - PurgeRequest: a bounded bulk-delete with a message filter.
*/
package domain
