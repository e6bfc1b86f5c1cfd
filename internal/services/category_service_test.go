// internal/services/category_service_test.go
package services

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/offer-enricher/internal/feed"
)

func strPtr(s string) *string { return &s }

// chain declares categories 1..n where i's parent is i-1.
func chain(n int) []feed.CategoryDecl {
	decls := make([]feed.CategoryDecl, 0, n)
	for i := 1; i <= n; i++ {
		d := feed.CategoryDecl{ID: strconv.Itoa(i), Name: "c" + strconv.Itoa(i)}
		if i > 1 {
			d.ParentID = strPtr(strconv.Itoa(i - 1))
		}
		decls = append(decls, d)
	}
	return decls
}

func TestBuildCategoryTreeLevels(t *testing.T) {
	tree := BuildCategoryTree(chain(5))
	require.Equal(t, 5, tree.Len())

	for i := 1; i <= 5; i++ {
		node, ok := tree.Node(strconv.Itoa(i))
		require.True(t, ok)
		assert.Equal(t, i, node.Level, "category %d", i)
	}
}

func TestBuildCategoryTreeEmptyParentIsRoot(t *testing.T) {
	tree := BuildCategoryTree([]feed.CategoryDecl{{ID: "1", ParentID: strPtr(""), Name: "Root"}})
	node, ok := tree.Node("1")
	require.True(t, ok)
	assert.Nil(t, node.ParentID)
	assert.Equal(t, 1, node.Level)
}

func TestBuildCategoryTreeDanglingParent(t *testing.T) {
	tree := BuildCategoryTree([]feed.CategoryDecl{{ID: "2", ParentID: strPtr("99"), Name: "Orphan"}})
	node, _ := tree.Node("2")
	assert.Equal(t, 1, node.Level)

	levels := tree.ResolveLevels("2")
	require.NotNil(t, levels.Lvl1)
	assert.Equal(t, "Orphan", *levels.Lvl1)
	assert.Nil(t, levels.Lvl2)
}

func TestBuildCategoryTreeCycleIsCapped(t *testing.T) {
	tree := BuildCategoryTree([]feed.CategoryDecl{
		{ID: "a", ParentID: strPtr("b"), Name: "A"},
		{ID: "b", ParentID: strPtr("a"), Name: "B"},
		{ID: "self", ParentID: strPtr("self"), Name: "Self"},
	})

	for _, id := range []string{"a", "b", "self"} {
		node, _ := tree.Node(id)
		assert.Equal(t, MaxCategoryDepth, node.Level, id)
	}

	levels := tree.ResolveLevels("a")
	assert.Equal(t, "A", *levels.Lvl1)
	assert.Equal(t, "B", *levels.Lvl2)
	assert.Equal(t, "A", *levels.Lvl3)
	assert.Equal(t, "B", *levels.Remaining)
}

func TestBuildCategoryTreeDuplicateKeepsLast(t *testing.T) {
	tree := BuildCategoryTree([]feed.CategoryDecl{
		{ID: "1", Name: "First"},
		{ID: "1", Name: "Second"},
	})
	assert.Equal(t, 1, tree.Len())
	node, _ := tree.Node("1")
	assert.Equal(t, "Second", node.Name)
}

func TestResolveLevels(t *testing.T) {
	tree := BuildCategoryTree(chain(5))

	tests := []struct {
		name      string
		id        string
		lvl1      *string
		lvl2      *string
		lvl3      *string
		remaining *string
	}{
		{name: "unknown", id: "404"},
		{name: "root", id: "1", lvl1: strPtr("c1")},
		{name: "depth 2", id: "2", lvl1: strPtr("c2"), lvl2: strPtr("c1")},
		{name: "depth 3", id: "3", lvl1: strPtr("c3"), lvl2: strPtr("c2"), lvl3: strPtr("c1")},
		{name: "depth 4", id: "4", lvl1: strPtr("c4"), lvl2: strPtr("c3"), lvl3: strPtr("c2"), remaining: strPtr("c1")},
		{name: "depth 5", id: "5", lvl1: strPtr("c5"), lvl2: strPtr("c4"), lvl3: strPtr("c3"), remaining: strPtr("c2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels := tree.ResolveLevels(tt.id)
			assert.Equal(t, tt.lvl1, levels.Lvl1)
			assert.Equal(t, tt.lvl2, levels.Lvl2)
			assert.Equal(t, tt.lvl3, levels.Lvl3)
			assert.Equal(t, tt.remaining, levels.Remaining)
		})
	}
}

func TestGroupByLevel(t *testing.T) {
	tree := BuildCategoryTree([]feed.CategoryDecl{
		{ID: "2", Name: "B"},
		{ID: "1", Name: "A"},
		{ID: "3", ParentID: strPtr("1"), Name: "C"},
	})

	groups := tree.GroupByLevel()
	require.Len(t, groups, 2)
	require.Len(t, groups[1], 2)
	assert.Equal(t, "1", groups[1][0].ID)
	assert.Equal(t, "2", groups[1][1].ID)
	require.Len(t, groups[2], 1)
	assert.Equal(t, "3", groups[2][0].ID)
}
