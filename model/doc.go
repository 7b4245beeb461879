// Package model defines the provider-agnostic generation contract used by
// chatmesh participants.
//
// A Model streams partial responses carrying raw text fragments and ends
// with one final response carrying usage, tool calls and sources. Failures
// are delivered on the error channel. Providers (OpenAI, Anthropic) live in
// sub-packages; MockModel scripts deterministic streams for tests and
// examples.
package model
