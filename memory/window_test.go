package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/storage"
	"github.com/graniteworks/passage/storage/badger"
	"github.com/graniteworks/passage/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow(t *testing.T, opts ...WindowOption) (*MemoryWindow, storage.SessionRepository) {
	t.Helper()

	chunkRepo, sessionRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() })

	w, err := NewMemoryWindow(sessionRepo, tokenizer.NewWords(), opts...)
	require.NoError(t, err)
	return w, sessionRepo
}

func TestMemoryWindow_AppendThenWindow(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	_, err := w.Append(ctx, "s1", core.RoleUser, "What is a lighthouse?", nil)
	require.NoError(t, err)
	_, err = w.Append(ctx, "s1", core.RoleAssistant, "A tower with a light.", []core.Citation{
		{ChunkId: 1, DocumentId: 2, Snippet: "a tower with a light"},
	})
	require.NoError(t, err)

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, window, 2)
	assert.Equal(t, core.RoleUser, window[0].Role, "window is oldest-first")
	assert.Equal(t, core.RoleAssistant, window[1].Role)
	require.Len(t, window[1].Citations, 1)
	assert.Equal(t, core.ID(1), window[1].Citations[0].ChunkId)
}

func TestMemoryWindow_AppendAndWindowExcludesNewTurn(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	_, err := w.Append(ctx, "s1", core.RoleUser, "first question", nil)
	require.NoError(t, err)
	_, err = w.Append(ctx, "s1", core.RoleAssistant, "first answer", nil)
	require.NoError(t, err)

	turn, history, err := w.AppendAndWindow(ctx, "s1", core.RoleUser, "second question", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), turn.Seq)
	assert.Equal(t, "second question", turn.Contents)

	// History is what the new turn responds to: everything before it
	require.Len(t, history, 2)
	assert.Equal(t, "first question", history[0].Contents)
	assert.Equal(t, "first answer", history[1].Contents)

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, window, 3, "the new turn is stored")
}

func TestMemoryWindow_AppendAndWindowValidation(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	_, _, err := w.AppendAndWindow(ctx, "", core.RoleUser, "contents", nil)
	assert.ErrorIs(t, err, ErrEmptySessionId)

	_, _, err = w.AppendAndWindow(ctx, "s1", core.RoleUser, "", nil)
	assert.ErrorIs(t, err, core.ErrInvalidTurn)
}

func TestMemoryWindow_AppendAndWindowIsAtomic(t *testing.T) {
	// Concurrent writers to the same session: because the read and the
	// append happen under one lock hold, every call must see exactly the
	// turns appended before its own, so len(history) == turn.Seq.
	w, _ := newTestWindow(t, WithMaxMessages(1000), WithMaxTokens(1_000_000))
	ctx := context.Background()

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				turn, history, err := w.AppendAndWindow(ctx, "s1", core.RoleUser, "concurrent turn", nil)
				if err != nil {
					errs <- err
					continue
				}
				if uint64(len(history)) != turn.Seq {
					errs <- fmt.Errorf("turn %d saw %d prior turns", turn.Seq, len(history))
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	stored, err := w.Window(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, stored, writers*perWriter)
}

func TestMemoryWindow_MessageBudget(t *testing.T) {
	w, _ := newTestWindow(t, WithMaxMessages(3), WithMaxTokens(1000))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := w.Append(ctx, "s1", core.RoleUser, fmt.Sprintf("message number %d", i), nil)
		require.NoError(t, err)
	}

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, window, 3)
	// The newest three, oldest-first
	assert.Contains(t, window[0].Contents, "4")
	assert.Contains(t, window[1].Contents, "5")
	assert.Contains(t, window[2].Contents, "6")
}

func TestMemoryWindow_TokenBudget(t *testing.T) {
	// 10-word turns against a 25-token budget: only two recent turns fit
	w, _ := newTestWindow(t, WithMaxMessages(100), WithMaxTokens(25))
	ctx := context.Background()

	turn := strings.Repeat("word ", 10)
	for i := 0; i < 5; i++ {
		_, err := w.Append(ctx, "s1", core.RoleUser, strings.TrimSpace(turn), nil)
		require.NoError(t, err)
	}

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)

	assert.Len(t, window, 2)
}

func TestMemoryWindow_DefaultBudgets(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	// 20 turns of ~300 tokens each
	contents := strings.TrimSpace(strings.Repeat("tok ", 300))
	for i := 0; i < 20; i++ {
		_, err := w.Append(ctx, "s1", core.RoleUser, contents, nil)
		require.NoError(t, err)
	}

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(window), 10)

	total := 0
	for _, turn := range window {
		total += turn.TokenCount
	}
	assert.LessOrEqual(t, total, 4096)

	// Chronological order despite the backward walk
	for i := 1; i < len(window); i++ {
		assert.Greater(t, window[i].Seq, window[i-1].Seq)
	}
}

func TestMemoryWindow_BudgetStopsAtFirstOverflow(t *testing.T) {
	// A huge turn in the middle blocks everything older than it,
	// even though the oldest turns are small
	w, _ := newTestWindow(t, WithMaxMessages(100), WithMaxTokens(10))
	ctx := context.Background()

	_, err := w.Append(ctx, "s1", core.RoleUser, "tiny", nil)
	require.NoError(t, err)
	_, err = w.Append(ctx, "s1", core.RoleUser, strings.TrimSpace(strings.Repeat("big ", 50)), nil)
	require.NoError(t, err)
	_, err = w.Append(ctx, "s1", core.RoleUser, "small recent turn", nil)
	require.NoError(t, err)

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, window, 1)
	assert.Equal(t, "small recent turn", window[0].Contents)
}

func TestMemoryWindow_SessionsAreIndependent(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	_, err := w.Append(ctx, "alpha", core.RoleUser, "alpha message", nil)
	require.NoError(t, err)
	_, err = w.Append(ctx, "beta", core.RoleUser, "beta message", nil)
	require.NoError(t, err)

	alpha, err := w.Window(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, alpha, 1)
	assert.Equal(t, "alpha message", alpha[0].Contents)
}

func TestMemoryWindow_AppendIsAppendOnly(t *testing.T) {
	w, sessionRepo := newTestWindow(t, WithMaxMessages(2))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := w.Append(ctx, "s1", core.RoleUser, fmt.Sprintf("turn %d", i), nil)
		require.NoError(t, err)
	}

	// Window trims to 2, but storage keeps the full history
	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, window, 2)

	stored, err := sessionRepo.GetTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestMemoryWindow_Clear(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	_, err := w.Append(ctx, "s1", core.RoleUser, "to be removed", nil)
	require.NoError(t, err)

	require.NoError(t, w.Clear(ctx, "s1"))

	window, err := w.Window(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestMemoryWindow_Validation(t *testing.T) {
	w, _ := newTestWindow(t)
	ctx := context.Background()

	_, err := w.Append(ctx, "", core.RoleUser, "contents", nil)
	assert.ErrorIs(t, err, ErrEmptySessionId)

	_, err = w.Window(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySessionId)

	_, err = w.Append(ctx, "s1", core.RoleUser, "", nil)
	assert.ErrorIs(t, err, core.ErrInvalidTurn)

	_, err = NewMemoryWindow(nil, tokenizer.NewWords())
	assert.ErrorIs(t, err, ErrSessionRepositoryRequired)

	chunkRepo, sessionRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() }()

	_, err = NewMemoryWindow(sessionRepo, nil)
	assert.ErrorIs(t, err, ErrTokenizerRequired)

	_, err = NewMemoryWindow(sessionRepo, tokenizer.NewWords(), WithMaxMessages(0))
	assert.ErrorIs(t, err, ErrInvalidMaxMessages)

	_, err = NewMemoryWindow(sessionRepo, tokenizer.NewWords(), WithMaxTokens(-1))
	assert.ErrorIs(t, err, ErrInvalidMaxTokens)
}
