package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "clipdex-media")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	var created []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			created = cmd
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, Config{Dimension: 512, HNSWM: 16, HNSWEFConstruct: 200})
	if err := s.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The vector field is last in the schema: VECTOR HNSW <count> <attrs...>.
	// The declared count must match the attributes actually supplied or
	// Redis rejects the whole command.
	vecAt := -1
	for i, tok := range created {
		if tok == "VECTOR" {
			vecAt = i
			break
		}
	}
	if vecAt < 0 || vecAt+2 >= len(created) {
		t.Fatalf("no vector field in FT.CREATE: %v", created)
	}
	if created[vecAt+1] != "HNSW" {
		t.Errorf("expected HNSW algorithm, got %q", created[vecAt+1])
	}
	count, err := strconv.Atoi(created[vecAt+2])
	if err != nil {
		t.Fatalf("vector attr count is not a number: %q", created[vecAt+2])
	}
	attrs := created[vecAt+3:]
	if count != len(attrs) {
		t.Fatalf("FT.CREATE declares %d vector attrs but supplies %d: %v", count, len(attrs), attrs)
	}

	want := map[string]string{
		"TYPE":            "FLOAT32",
		"DIM":             "512",
		"DISTANCE_METRIC": "COSINE",
		"M":               "16",
		"EF_CONSTRUCTION": "200",
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		if v, ok := want[attrs[i]]; ok && v != attrs[i+1] {
			t.Errorf("attr %s = %q, want %q", attrs[i], attrs[i+1], v)
		}
		delete(want, attrs[i])
	}
	if len(want) != 0 {
		t.Errorf("missing vector attrs: %v", want)
	}
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "clipdex-media")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("clipdex-media"),
		)))

	s := NewStoreForTest(c, Config{Dimension: 512})
	if err := s.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_AlreadyExistsRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "clipdex-media")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c, Config{Dimension: 512})
	if err := s.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("concurrent creation must not error: %v", err)
	}
}

func TestEnsureIndex_CreateError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "clipdex-media")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, Config{Dimension: 512})
	if err := s.EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
