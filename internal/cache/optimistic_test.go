package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func removeValue(target int) func(string, any) (any, bool) {
	return func(_ string, v any) (any, bool) {
		items := v.([]int)
		out := make([]int, 0, len(items))
		for _, i := range items {
			if i != target {
				out = append(out, i)
			}
		}
		if len(out) == len(items) {
			return nil, false
		}
		return out, true
	}
}

func TestOptimisticRollbackRestoresOriginal(t *testing.T) {
	c := New(nil)
	c.Set("list/a", []int{1, 2, 3})
	c.Set("list/b", []int{4})

	o := c.Begin(
		Mutation{Prefix: "list", Apply: removeValue(2)},
		Mutation{Prefix: "list", Apply: removeValue(3)},
	)
	assert.Equal(t, []string{"list/a"}, o.Touched())

	v, _ := c.Get("list/a")
	assert.Equal(t, []int{1}, v)

	require.True(t, o.Rollback())
	v, _ = c.Get("list/a")
	assert.Equal(t, []int{1, 2, 3}, v, "should restore state before the first mutation")

	assert.False(t, o.Rollback(), "second rollback is a no-op")
}

func TestOptimisticCommitKeepsValues(t *testing.T) {
	c := New(nil)
	c.Set("list/a", []int{1, 2})

	o := c.Begin(Mutation{Prefix: "list", Apply: removeValue(1)})
	o.Commit()
	assert.False(t, o.Rollback())

	v, _ := c.Get("list/a")
	assert.Equal(t, []int{2}, v)
}
