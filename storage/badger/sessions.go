package badger

import (
	"context"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
// Turns are stored under composite keys ordered by sequence number, so a
// prefix scan yields a session's history in insertion order.
type SessionRepository struct {
	backend *Backend
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
//
// Returns storage.SessionRepository interface to enforce abstraction.
func NewSessionRepository(backend *Backend) (storage.SessionRepository, error) {
	return newSessionRepository(backend)
}

// newSessionRepository is an internal constructor that returns the concrete type.
func newSessionRepository(backend *Backend) (*SessionRepository, error) {
	if backend == nil {
		return nil, storage.ErrStorageClosed
	}
	return &SessionRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *SessionRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SessionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AppendTurns appends turns to a session in order. Sessions are created
// lazily: appending to an unknown session starts its history at Seq 0.
func (r *SessionRepository) AppendTurns(ctx context.Context, sessionID string, turns ...*core.ConversationTurn) ([]*core.ConversationTurn, error) {
	if sessionID == "" {
		return nil, storage.ErrInvalidQuery
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		seq, err := r.nextSeq(tx, sessionID)
		if err != nil {
			return err
		}

		for _, turn := range turns {
			turn.SessionId = sessionID
			turn.Seq = seq
			turn.Id = core.IDFromContent(sessionID + ":" + strconv.FormatUint(seq, 10))
			if turn.CreatedAt.IsZero() {
				turn.CreatedAt = time.Now().UTC()
			}

			key := makeSessionTurnKey(sessionID, seq)
			if err := tx.Set(key, storage.MarshalTurn(turn)); err != nil {
				return err
			}
			seq++
		}
		return tx.Commit()
	}, true)

	return turns, err
}

// GetTurns retrieves all turns of a session in insertion order.
func (r *SessionRepository) GetTurns(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error) {
	if sessionID == "" {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ConversationTurn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialSessionTurnKey(sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var turn *core.ConversationTurn
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				turn, err = storage.UnmarshalTurn(val)
				return err
			}); err != nil {
				return err
			}
			if turn != nil {
				results = append(results, turn)
			}
		}
		return nil
	}, false)

	return results, err
}

// ClearSession removes all turns of a session.
func (r *SessionRepository) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return storage.ErrInvalidQuery
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		var keys [][]byte

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialSessionTurnKey(sessionID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// nextSeq returns the sequence number the next appended turn should take:
// 0 for an unknown session, one past the highest stored Seq otherwise.
func (r *SessionRepository) nextSeq(tx *badger.Txn, sessionID string) (uint64, error) {
	var next uint64

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialSessionTurnKey(sessionID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		// Seq is the trailing 8 bytes of the composite key
		if len(key) >= 8 {
			seq := binary.BigEndian.Uint64(key[len(key)-8:])
			if seq+1 > next {
				next = seq + 1
			}
		}
	}

	return next, nil
}
