package randdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem(t *testing.T) {
	g := New(1)
	genders := []string{"Female", "Male"}
	for range 20 {
		v, err := Item(g, genders)
		require.NoError(t, err)
		assert.Contains(t, genders, v)
	}

	_, err := Item(g, []string{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestInt(t *testing.T) {
	g := New(2)
	seen := map[int]bool{}
	for range 200 {
		v, err := g.Int(5, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 5)
		assert.LessOrEqual(t, v, 10)
		seen[v] = true
	}
	assert.Len(t, seen, 6)

	v, err := g.Int(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = g.Int(4, 3)
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	g := New(3)
	got := g.Text(7)
	parts := strings.Fields(got)
	assert.Len(t, parts, 7)
	for _, p := range parts {
		assert.Contains(t, words, p)
	}
	assert.Empty(t, g.Text(0))
}

func TestPhone(t *testing.T) {
	g := New(4)
	p, err := g.Phone(8, "7")
	require.NoError(t, err)
	assert.Len(t, p, 8)
	assert.True(t, strings.HasPrefix(p, "7"))
	assert.Empty(t, strings.Trim(p, "0123456789"))

	_, err = g.Phone(1, "79")
	assert.Error(t, err)
	_, err = g.Phone(8, "+7")
	assert.Error(t, err)
}

func TestSeedReplays(t *testing.T) {
	a, b := New(42), New(42)
	assert.Equal(t, a.Text(10), b.Text(10))
	pa, _ := a.Phone(8, "7")
	pb, _ := b.Phone(8, "7")
	assert.Equal(t, pa, pb)
}
