// Package testutil contains helpers shared by tests: a testify-backed mock
// capability, a scripted capability for engine scenarios, builders for
// discussions and an event recorder. They are not intended for production
// usage.
package testutil
