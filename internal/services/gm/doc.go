// Package gm hosts the game master service: an ordered pipeline of model
// cores that turns one player utterance into one narrated reply.
//
// Subpackages, leaves first:
//   - transcript: the append-only session record and its read-only views
//   - variables: {{$Name}} placeholder resolution for instruction templates
//   - capability: the static registry of tools a core may call mid-generation
//   - adventure: scripted adventure content and its lookup capabilities
//   - rulebook: SQLite full-text index behind the search_rulebook capability
//   - core: one pipeline stage (instructions + context policy + tools)
//   - provider/openai: the chat-completions client with its tool loop
//   - review: the rubric classifier that can send a draft back for revision
//   - pipeline: the orchestrator that walks stages, validates and retries
//   - pipelineconfig: the YAML pipeline definition and its defaults
//   - observe: log and trace observers for stage and capability events
//   - console: terminal rendering and cancellable line input
//   - session: the player-facing loop that owns transcript and adventure
//   - app: process wiring for the gm and gm-mcp commands
package gm
