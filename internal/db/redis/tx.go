package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clinrag/internal/db"
)

// Exec applies muts inside MULTI/EXEC in one DoMulti round-trip, so either all
// writes land or none do.
func (s *Store) Exec(ctx context.Context, muts []db.Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(muts)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for i := range muts {
		cmd, ok := s.buildMutation(&muts[i])
		if ok {
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	if len(results) == 0 {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("no replies")}
	}
	// queued replies: MULTI OK, then QUEUED per command
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return db.ErrTxAborted
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i := range replies {
		if err := replies[i].Error(); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("reply %d: %w", i, err)}
		}
	}
	return nil
}

func (s *Store) buildMutation(m *db.Mutation) (rueidis.Completed, bool) {
	switch m.Kind {
	case db.MutHSet:
		if len(m.Fields) == 0 {
			return rueidis.Completed{}, false
		}
		names := make([]string, 0, len(m.Fields))
		for k := range m.Fields {
			names = append(names, k)
		}
		sort.Strings(names)
		cmd := s.b().Hset().Key(m.Key).FieldValue()
		for _, k := range names {
			cmd = cmd.FieldValue(k, m.Fields[k])
		}
		return cmd.Build(), true
	case db.MutDel:
		return s.b().Del().Key(m.Key).Build(), true
	case db.MutSAdd:
		if len(m.Members) == 0 {
			return rueidis.Completed{}, false
		}
		return s.b().Sadd().Key(m.Key).Member(m.Members...).Build(), true
	default:
		return rueidis.Completed{}, false
	}
}
