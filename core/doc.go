// Package core provides the foundational conversation types shared by
// chatmesh components:
//
//   - Content and Part, the role-based message body exchanged with models
//   - Session and Message, the persisted conversation history
//   - SessionStore, the persistence contract implemented by package session
//   - RoundLimiter, the bounded round counter used by group turns
//
// Implementation concerns (storage backends, orchestration) live elsewhere so
// that this package stays dependency free.
package core
