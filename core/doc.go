// Package core provides the foundational domain types shared by every other
// package of agentpanel:
//
//   - Participants and agent identities (who takes part in a discussion)
//   - Messages and discussion state (the transcript and its lifecycle)
//   - Conversations (ordered groups of discussions enabling follow-ups)
//   - Events emitted while a discussion streams
//   - Error kinds used to map failures onto caller-visible behavior
//
// The package keeps orchestration, persistence and transport out of scope and
// exposes small interfaces (ConversationStore) so those concerns can be
// plugged in by the caller.
package core
