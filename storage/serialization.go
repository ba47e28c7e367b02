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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/graniteworks/passage/core"
)

// MUS serializers for the domain types stored as badger values.
// Timestamps are encoded as Unix microseconds.
var (
	IDMUS    = idSer{}
	ChunkMUS = chunkSer{}
	TurnMUS  = turnSer{}

	vectorSer    = ord.NewSliceSer[float32](raw.Float32)
	metadataSer  = ord.NewMapSer[string, string](ord.String, ord.String)
	citationsSer = ord.NewSliceSer[core.Citation](citationSer{})
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, IDMUS.Size(id))
	IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalTurn serializes a ConversationTurn to bytes.
func MarshalTurn(turn *core.ConversationTurn) []byte {
	buf := make([]byte, TurnMUS.Size(*turn))
	TurnMUS.Marshal(*turn, buf)
	return buf
}

// UnmarshalTurn deserializes a ConversationTurn from bytes.
func UnmarshalTurn(data []byte) (*core.ConversationTurn, error) {
	turn, _, err := TurnMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &turn, nil
}

type idSer struct{}

func (idSer) Marshal(id core.ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idSer) Unmarshal(bs []byte) (id core.ID, n int, err error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return core.ID(v), n, err
}

func (idSer) Size(id core.ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idSer) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

type chunkSer struct{}

func (chunkSer) Marshal(c core.Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += varint.Uint64.Marshal(uint64(c.DocumentId), bs[n:])
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += varint.Int.Marshal(c.TotalChunks, bs[n:])
	n += ord.String.Marshal(c.Contents, bs[n:])
	n += varint.Int.Marshal(c.TokenCount, bs[n:])
	n += varint.Int.Marshal(c.CharCount, bs[n:])
	n += ord.Bool.Marshal(c.Oversize, bs[n:])
	n += vectorSer.Marshal(c.Vector, bs[n:])
	n += metadataSer.Marshal(c.Metadata, bs[n:])
	n += raw.Int64.Marshal(c.InsertedAt.UnixMicro(), bs[n:])
	n += raw.Int64.Marshal(c.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (chunkSer) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	var (
		id, docID            uint64
		inserted, updated    int64
		n1                   int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	c.Id = core.ID(id)
	if docID, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	c.DocumentId = core.ID(docID)
	n += n1
	if c.Index, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.TotalChunks, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Contents, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.TokenCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.CharCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Oversize, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Vector, n1, err = vectorSer.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.Metadata, n1, err = metadataSer.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if inserted, n1, err = raw.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	c.InsertedAt = time.UnixMicro(inserted).UTC()
	n += n1
	if updated, n1, err = raw.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	c.UpdatedAt = time.UnixMicro(updated).UTC()
	n += n1
	return
}

func (chunkSer) Size(c core.Chunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += varint.Uint64.Size(uint64(c.DocumentId))
	size += varint.Int.Size(c.Index)
	size += varint.Int.Size(c.TotalChunks)
	size += ord.String.Size(c.Contents)
	size += varint.Int.Size(c.TokenCount)
	size += varint.Int.Size(c.CharCount)
	size += ord.Bool.Size(c.Oversize)
	size += vectorSer.Size(c.Vector)
	size += metadataSer.Size(c.Metadata)
	size += raw.Int64.Size(c.InsertedAt.UnixMicro())
	size += raw.Int64.Size(c.UpdatedAt.UnixMicro())
	return size
}

func (s chunkSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type turnSer struct{}

func (turnSer) Marshal(t core.ConversationTurn, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(t.Id), bs)
	n += ord.String.Marshal(t.SessionId, bs[n:])
	n += varint.Uint64.Marshal(t.Seq, bs[n:])
	n += varint.Int.Marshal(int(t.Role), bs[n:])
	n += ord.String.Marshal(t.Contents, bs[n:])
	n += varint.Int.Marshal(t.TokenCount, bs[n:])
	n += citationsSer.Marshal(t.Citations, bs[n:])
	n += raw.Int64.Marshal(t.CreatedAt.UnixMicro(), bs[n:])
	return n
}

func (turnSer) Unmarshal(bs []byte) (t core.ConversationTurn, n int, err error) {
	var (
		id      uint64
		role    int
		created int64
		n1      int
	)
	if id, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	t.Id = core.ID(id)
	if t.SessionId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if t.Seq, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if role, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	t.Role = core.Role(role)
	n += n1
	if t.Contents, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if t.TokenCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if t.Citations, n1, err = citationsSer.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if created, n1, err = raw.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	t.CreatedAt = time.UnixMicro(created).UTC()
	n += n1
	return
}

func (turnSer) Size(t core.ConversationTurn) (size int) {
	size = varint.Uint64.Size(uint64(t.Id))
	size += ord.String.Size(t.SessionId)
	size += varint.Uint64.Size(t.Seq)
	size += varint.Int.Size(int(t.Role))
	size += ord.String.Size(t.Contents)
	size += varint.Int.Size(t.TokenCount)
	size += citationsSer.Size(t.Citations)
	size += raw.Int64.Size(t.CreatedAt.UnixMicro())
	return size
}

func (s turnSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type citationSer struct{}

func (citationSer) Marshal(c core.Citation, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.ChunkId), bs)
	n += varint.Uint64.Marshal(uint64(c.DocumentId), bs[n:])
	n += ord.String.Marshal(c.Snippet, bs[n:])
	return n
}

func (citationSer) Unmarshal(bs []byte) (c core.Citation, n int, err error) {
	var (
		chunkID, docID uint64
		n1             int
	)
	if chunkID, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	c.ChunkId = core.ID(chunkID)
	if docID, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	c.DocumentId = core.ID(docID)
	n += n1
	if c.Snippet, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (citationSer) Size(c core.Citation) (size int) {
	size = varint.Uint64.Size(uint64(c.ChunkId))
	size += varint.Uint64.Size(uint64(c.DocumentId))
	size += ord.String.Size(c.Snippet)
	return size
}

func (s citationSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
