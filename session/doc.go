// Package session houses concrete implementations of core.SessionStore.
//
// InMemoryStore keeps sessions in a process local map and suits tests and
// the CLI. RedisStore persists message histories as Redis lists so several
// chatmesh processes can share conversations. Only the wiring layer decides
// which implementation to instantiate.
package session
