// Package testutil contains helpers used across tests to reduce boilerplate
// when building sessions and participants and when asserting on event
// streams. They are not intended for production usage.
package testutil
