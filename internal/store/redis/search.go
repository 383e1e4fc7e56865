package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/clipdex/internal/domain"
	"github.com/kailas-cloud/clipdex/internal/store"
)

const (
	vectorField = "vector"
	scoreField  = "__vector_score"
)

// Query runs a KNN vector similarity search via FT.SEARCH. The content
// type filter becomes a TAG pre-filter so TopK is satisfied from the
// filtered subset.
func (s *Store) Query(ctx context.Context, q *store.Query) ([]domain.Match, error) {
	if len(q.Vector) != s.cfg.Dimension {
		return nil, fmt.Errorf("%w: got %d, index expects %d",
			domain.ErrVectorDimMismatch, len(q.Vector), s.cfg.Dimension)
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.TopK, vectorField)
	queryStr := "*=>" + knnPart
	if q.ContentType.IsFilter() {
		queryStr = fmt.Sprintf("(@%s:{%s})=>%s",
			domain.FieldType, tagEscaper.Replace(string(q.ContentType)), knnPart)
	}

	args := []string{s.cfg.IndexName, queryStr}
	if !q.IncludeMetadata {
		args = append(args, "RETURN", "1", scoreField)
	}
	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &store.Error{Op: store.OpQuery, Err: err}
	}

	return s.parseKNNResult(raw)
}

// parseKNNResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func (s *Store) parseKNNResult(raw []rueidis.RedisMessage) ([]domain.Match, error) {
	if len(raw) == 0 {
		return []domain.Match{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return []domain.Match{}, nil
	}

	matches := make([]domain.Match, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldArr, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldArr)

		score := 0.0
		if distStr, ok := fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(distStr, 64); err == nil {
				// cosine distance -> similarity, clamped to [0,1]
				score = max(0, 1.0-d)
			}
			delete(fields, scoreField)
		}

		matches = append(matches, domain.Match{
			ID:       trimPrefix(key, s.cfg.KeyPrefix),
			Score:    score,
			Metadata: fieldsToMetadata(fields),
		})
	}

	return matches, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// tagEscaper neutralizes FT query syntax inside TAG values. The content
// type on the generic endpoint is caller-supplied, so an unescaped value
// could break out of the tag clause.
var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func trimPrefix(key, prefix string) string {
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// vectorToBytes encodes float32s as a little-endian binary blob for
// FT.SEARCH PARAMS and hash storage.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
