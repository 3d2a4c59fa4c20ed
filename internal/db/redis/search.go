package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clinrag/internal/db"
)

const (
	defaultVectorField = "vector"
	defaultTextField   = "content"
	// knnScoreField is the distance alias FT.SEARCH attaches to KNN hits.
	knnScoreField = "__vector_score"
)

// SearchKNN runs a KNN query and converts the cosine distance of each hit
// into similarity (1 - distance).
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("vector is required")
	case q.K <= 0:
		return nil, errors.New("k must be positive")
	}

	field := q.Field
	if field == "" {
		field = defaultVectorField
	}
	params := []string{"BLOB", vectorToBytes(q.Vector)}
	knn := fmt.Sprintf("[KNN %d @%s $BLOB", q.K, field)
	if q.EFRuntime > 0 {
		knn += " EF_RUNTIME $EF"
		params = append(params, "EF", strconv.Itoa(q.EFRuntime))
	}
	knn += "]"

	pre := buildFilter(q.Filters)
	if pre == "" {
		pre = "*"
	} else {
		pre = "(" + pre + ")"
	}

	args := []string{q.IndexName, pre + "=>" + knn}
	if len(q.ReturnFields) > 0 {
		args = appendReturn(args, append(append([]string(nil), q.ReturnFields...), knnScoreField))
	}
	args = append(args, "SORTBY", knnScoreField, "LIMIT", "0", strconv.Itoa(q.K))
	args = append(args, "PARAMS", strconv.Itoa(len(params)))
	args = append(args, params...)
	args = append(args, "DIALECT", "2")

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	res, err := parseReply(raw, false)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, err := strconv.ParseFloat(e.Fields[knnScoreField], 64); err == nil {
			e.Score = 1 - d
		}
		delete(e.Fields, knnScoreField)
	}
	return res, nil
}

// SearchBM25 matches any query term in the given TEXT fields and ranks by BM25STD.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case strings.TrimSpace(q.Query) == "":
		return nil, errors.New("query is required")
	case q.TopK <= 0:
		return nil, errors.New("topK must be positive")
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = []string{defaultTextField}
	}
	query := fmt.Sprintf("@%s:(%s)", strings.Join(fields, "|"), anyTerm(q.Query))
	if pre := buildFilter(q.Filters); pre != "" {
		query = pre + " " + query
	}

	args := []string{q.IndexName, query}
	args = appendReturn(args, q.ReturnFields)
	args = append(args,
		"WITHSCORES",
		"SCORER", "BM25STD",
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseReply(raw, true)
}

func (s *Store) search(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return raw, nil
}

func appendReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// parseReply reads [total, key, (score,) fields, ...]. Malformed hits are skipped.
func parseReply(raw []rueidis.RedisMessage, withScores bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse total: %w", err)}
	}

	stride := 2
	if withScores {
		stride = 3
	}
	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		var score float64
		if withScores {
			str, err := raw[i+1].ToString()
			if err != nil {
				continue
			}
			if score, err = strconv.ParseFloat(str, 64); err != nil {
				continue
			}
		}
		pairs, err := raw[i+stride-1].ToArray()
		if err != nil {
			continue
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Score: score, Fields: fieldMap(pairs)})
	}
	return res, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		if value, err := pairs[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}

// buildFilter ANDs one "@field:{a | b}" clause per field, fields sorted so the
// query text is stable.
func buildFilter(f db.Filters) string {
	names := make([]string, 0, len(f))
	for name, values := range f {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	clauses := make([]string, len(names))
	for i, name := range names {
		values := make([]string, len(f[name]))
		for j, v := range f[name] {
			values[j] = escape(v)
		}
		clauses[i] = "@" + name + ":{" + strings.Join(values, " | ") + "}"
	}
	return strings.Join(clauses, " ")
}

// anyTerm ORs the escaped query words, so a chunk matching any of them is a
// candidate and BM25 ranks by how many it matches.
func anyTerm(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = escape(w)
	}
	return strings.Join(words, " | ")
}

// escape backslashes every rune the query parser could read as syntax.
func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func vectorToBytes(v []float32) string { return db.EncodeVector(v) }
