package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clinrag/internal/db"
)

// hashPage bounds the HGETALLs pipelined in one DoMulti.
const hashPage = 128

// HGetAll returns the fields of a hash; a missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti pipelines HGETALL for keys, in pages of hashPage, and returns
// the maps in key order. Missing keys yield empty maps.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	out := make([]map[string]string, 0, len(keys))
	for start := 0; start < len(keys); start += hashPage {
		if err := ctx.Err(); err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: err}
		}
		page := keys[start:min(start+hashPage, len(keys))]

		cmds := make([]rueidis.Completed, len(page))
		for i, key := range page {
			cmds[i] = s.b().Hgetall().Key(key).Build()
		}
		for i, res := range s.client.DoMulti(ctx, cmds...) {
			m, err := res.AsStrMap()
			if err != nil {
				return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", page[i], err)}
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

// SMembers returns the members of a set; a missing key yields none.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.do(ctx, s.b().Smembers().Key(key).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return members, nil
}
