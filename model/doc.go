// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with text generation backends inside agentpanel.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Let every call carry its own model selection (Request.Model)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini, Ollama) implement the Model interface
// from this package so higher layers (agents, moderator) remain decoupled from
// vendor SDKs. Providers that can enumerate their models also implement Lister.
package model
