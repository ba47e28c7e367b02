// Package memory maintains per-session conversation history and produces
// token- and message-bounded windows of recent turns for context assembly.
//
// History is append-only and persisted through a storage.SessionRepository.
// Windows are computed at read time by walking the stored turns backward
// until a budget is hit, then returned oldest-first. Sessions are created
// lazily on first reference and never share state.
package memory
