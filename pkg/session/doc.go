/*
Package session implements the single-claim registry shared by confirmation gates and
notification prompts.

Each session is addressed by id and leaves Pending exactly once. Resolution by the
initiator and expiry by timer race through the same mutex-guarded claim: the winner
settles the session and runs its settle callback, the loser observes domain.ErrNotFound
(resolve) or is dropped silently (timer). Settled sessions are retained for a while in an
expiring LRU so that late Await calls still observe the terminal state.
*/
package session
