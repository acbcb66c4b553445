package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestCache_PutThenGetHits(t *testing.T) {
	c := New(10, time.Minute)
	f := model.FileInput{Path: "a.py", Content: []byte("x = 1\n")}
	ast := &model.ModuleAST{ModuleID: "a", Path: "a.py"}
	violations := []model.RuleViolation{{RuleID: "parse_error"}}

	c.Put(f, ast, violations)
	gotAST, gotV, ok := c.Get(f)
	require.True(t, ok)
	require.Equal(t, ast, gotAST)
	require.Equal(t, violations, gotV)
}

func TestCache_ContentChangeMisses(t *testing.T) {
	c := New(10, time.Minute)
	f1 := model.FileInput{Path: "a.py", Content: []byte("x = 1\n")}
	f2 := model.FileInput{Path: "a.py", Content: []byte("x = 2\n")}

	c.Put(f1, &model.ModuleAST{Path: "a.py"}, nil)
	_, _, ok := c.Get(f2)
	require.False(t, ok)
}

func TestCache_TTLExpires(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	f := model.FileInput{Path: "a.py", Content: []byte("x = 1\n")}
	c.Put(f, &model.ModuleAST{Path: "a.py"}, nil)

	time.Sleep(30 * time.Millisecond)
	_, _, ok := c.Get(f)
	require.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(10, time.Minute)
	f := model.FileInput{Path: "a.py", Content: []byte("x = 1\n")}
	c.Put(f, &model.ModuleAST{Path: "a.py"}, nil)
	require.Equal(t, 1, c.Len())

	c.Invalidate(f)
	_, _, ok := c.Get(f)
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestKeyFor_SamePathDifferentContentDiffersHash(t *testing.T) {
	k1 := KeyFor(model.FileInput{Path: "a.py", Content: []byte("a")})
	k2 := KeyFor(model.FileInput{Path: "a.py", Content: []byte("b")})
	require.Equal(t, k1.Path, k2.Path)
	require.NotEqual(t, k1.Hash, k2.Hash)
}
