// Copyright 2025 Graniteworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/storage"
	"github.com/graniteworks/passage/tokenizer"
)

const (
	// DefaultMaxMessages is the default message-count budget for a window.
	DefaultMaxMessages = 10

	// DefaultMaxTokens is the default token budget for a window.
	DefaultMaxTokens = 4096
)

// MemoryWindow maintains per-session conversation history and produces
// token- and message-bounded windows of the most recent turns.
//
// Appending is append-only: trimming happens at read time and never mutates
// stored history. Operations on the same session serialize so an append and
// its subsequent window read cannot interleave with another writer.
type MemoryWindow struct {
	sessionRepository storage.SessionRepository
	tokenizer         tokenizer.Tokenizer
	maxMessages       int
	maxTokens         int
	logger            *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// WindowOption configures a MemoryWindow.
type WindowOption func(*MemoryWindow) error

// WithMaxMessages sets the message-count budget.
// Default is DefaultMaxMessages.
func WithMaxMessages(maxMessages int) WindowOption {
	return func(w *MemoryWindow) error {
		if maxMessages <= 0 {
			return ErrInvalidMaxMessages
		}
		w.maxMessages = maxMessages
		return nil
	}
}

// WithMaxTokens sets the token budget.
// Default is DefaultMaxTokens.
func WithMaxTokens(maxTokens int) WindowOption {
	return func(w *MemoryWindow) error {
		if maxTokens <= 0 {
			return ErrInvalidMaxTokens
		}
		w.maxTokens = maxTokens
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) WindowOption {
	return func(w *MemoryWindow) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger.With("component", "memory-window")
		return nil
	}
}

// NewMemoryWindow creates a memory window over the given session store.
func NewMemoryWindow(sessionRepository storage.SessionRepository, tok tokenizer.Tokenizer, opts ...WindowOption) (*MemoryWindow, error) {
	if sessionRepository == nil {
		return nil, ErrSessionRepositoryRequired
	}
	if tok == nil {
		return nil, ErrTokenizerRequired
	}

	w := &MemoryWindow{
		sessionRepository: sessionRepository,
		tokenizer:         tok,
		maxMessages:       DefaultMaxMessages,
		maxTokens:         DefaultMaxTokens,
		logger:            slog.Default().With("component", "memory-window"),
		locks:             make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// sessionLock returns the mutex for a session, creating it on first use.
// Sessions are created lazily and each session's lock is independent.
func (w *MemoryWindow) sessionLock(sessionId string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	lock, ok := w.locks[sessionId]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[sessionId] = lock
	}
	return lock
}

// newTurn builds an unvalidated turn with its token count computed from the
// contents.
func (w *MemoryWindow) newTurn(sessionId string, role core.Role, contents string, citations []core.Citation) *core.ConversationTurn {
	return &core.ConversationTurn{
		SessionId:  sessionId,
		Role:       role,
		Contents:   contents,
		TokenCount: w.tokenizer.Count(contents),
		Citations:  citations,
	}
}

// Append adds a turn to a session's history. The turn's token count is
// computed from its contents when not already set.
func (w *MemoryWindow) Append(ctx context.Context, sessionId string, role core.Role, contents string, citations []core.Citation) (*core.ConversationTurn, error) {
	if sessionId == "" {
		return nil, ErrEmptySessionId
	}

	turn := w.newTurn(sessionId, role, contents, citations)
	if err := core.ValidateTurn(turn); err != nil {
		return nil, err
	}

	lock := w.sessionLock(sessionId)
	lock.Lock()
	defer lock.Unlock()

	return w.appendTurn(ctx, sessionId, turn)
}

// AppendAndWindow records a turn and returns the window of turns that
// preceded it, as one unit under the session lock. A concurrent writer to
// the same session cannot interleave between the read and the append, so
// the returned history is exactly what the new turn responds to.
func (w *MemoryWindow) AppendAndWindow(ctx context.Context, sessionId string, role core.Role, contents string, citations []core.Citation) (*core.ConversationTurn, []*core.ConversationTurn, error) {
	if sessionId == "" {
		return nil, nil, ErrEmptySessionId
	}

	turn := w.newTurn(sessionId, role, contents, citations)
	if err := core.ValidateTurn(turn); err != nil {
		return nil, nil, err
	}

	lock := w.sessionLock(sessionId)
	lock.Lock()
	defer lock.Unlock()

	history, err := w.recentWindow(ctx, sessionId)
	if err != nil {
		return nil, nil, err
	}

	appended, err := w.appendTurn(ctx, sessionId, turn)
	if err != nil {
		return nil, nil, err
	}

	return appended, history, nil
}

// appendTurn persists a validated turn. The caller holds the session lock.
func (w *MemoryWindow) appendTurn(ctx context.Context, sessionId string, turn *core.ConversationTurn) (*core.ConversationTurn, error) {
	appended, err := w.sessionRepository.AppendTurns(ctx, sessionId, turn)
	if err != nil {
		return nil, err
	}
	return appended[0], nil
}

// Window returns the most recent turns of a session, bounded by the message
// and token budgets, oldest first.
//
// The walk runs backward from the newest turn and stops the moment a turn
// would exceed the token budget, or once the message budget is reached,
// whichever triggers first. Older turns past the stopping point are excluded
// even if some would individually fit.
func (w *MemoryWindow) Window(ctx context.Context, sessionId string) ([]*core.ConversationTurn, error) {
	if sessionId == "" {
		return nil, ErrEmptySessionId
	}

	lock := w.sessionLock(sessionId)
	lock.Lock()
	defer lock.Unlock()

	return w.recentWindow(ctx, sessionId)
}

// recentWindow builds the window. The caller holds the session lock.
func (w *MemoryWindow) recentWindow(ctx context.Context, sessionId string) ([]*core.ConversationTurn, error) {
	turns, err := w.sessionRepository.GetTurns(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	start := len(turns)
	tokens := 0
	for i := len(turns) - 1; i >= 0; i-- {
		turnTokens := turns[i].TokenCount
		if turnTokens == 0 {
			turnTokens = w.tokenizer.Count(turns[i].Contents)
		}

		if tokens+turnTokens > w.maxTokens {
			break
		}
		if len(turns)-i > w.maxMessages {
			break
		}

		tokens += turnTokens
		start = i
	}

	window := turns[start:]

	w.logger.Debug("built window",
		"session", sessionId,
		"stored", len(turns),
		"returned", len(window),
		"tokens", tokens)

	return window, nil
}

// Clear removes all stored turns for a session. Other sessions are untouched.
func (w *MemoryWindow) Clear(ctx context.Context, sessionId string) error {
	if sessionId == "" {
		return ErrEmptySessionId
	}

	lock := w.sessionLock(sessionId)
	lock.Lock()
	defer lock.Unlock()

	return w.sessionRepository.ClearSession(ctx, sessionId)
}
