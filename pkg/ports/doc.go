/*
Package ports defines the driven ports (interfaces) of the Warden engine.

These interfaces decouple the moderation workflows from the chat platform and from
persistence, so the same engine runs against a real gateway, the in-memory simulator
or any of the store adapters.

# Key Interfaces

  - Platform: the chat platform collaborator (Moderator, Messenger and ChannelManager).
  - GuildConfigStore: durable guild settings read once at startup and written through.
  - WarnStore: durable per (guild, user) warning counters.
  - DistributedLocker: cross-replica locking for warn and config critical sections.
*/
package ports
