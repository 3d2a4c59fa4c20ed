// Package db is the key-value and FT search facade the redis graph backend and the
// embedding cache are built on.
package db

import (
	"context"
	"time"
)

// Store is everything the redis backend offers. Consumers depend on the
// narrow interfaces below.
//
//nolint:interfacebloat
type Store interface {
	Pinger
	HashStore
	SetStore
	KVStore
	IndexManager
	Searcher
	Transactor
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// SetStore provides set membership reads.
type SetStore interface {
	SMembers(ctx context.Context, key string) ([]string, error)
}

// KVStore holds opaque string values; a zero ttl never expires.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// Transactor applies a batch of mutations atomically (MULTI/EXEC).
type Transactor interface {
	Exec(ctx context.Context, muts []Mutation) error
}

// MutationKind selects the write command of a Mutation.
type MutationKind int

const (
	// MutHSet sets Fields on the hash at Key.
	MutHSet MutationKind = iota
	// MutDel deletes Key.
	MutDel
	// MutSAdd adds Members to the set at Key.
	MutSAdd
)

// Mutation is one write inside an atomic batch.
type Mutation struct {
	Kind    MutationKind
	Key     string
	Fields  map[string]string
	Members []string
}

// HSet builds a hash write.
func HSet(key string, fields map[string]string) Mutation {
	return Mutation{Kind: MutHSet, Key: key, Fields: fields}
}

// Del builds a key deletion.
func Del(key string) Mutation { return Mutation{Kind: MutDel, Key: key} }

// SAdd builds a set insertion.
func SAdd(key string, members ...string) Mutation {
	return Mutation{Kind: MutSAdd, Key: key, Members: members}
}
