// internal/services/category_service.go
package services

import (
	"sort"

	"github.com/javajoker/offer-enricher/internal/feed"
	"github.com/javajoker/offer-enricher/internal/models"
)

// MaxCategoryDepth bounds every walk up the parent chain, so a cyclic or
// self-referencing feed still terminates.
const MaxCategoryDepth = 32

// flattenSteps is how many nodes ResolveLevels visits: three named levels
// plus the remaining bucket.
const flattenSteps = 4

// CategoryTree is the immutable id -> node lookup built once per run.
type CategoryTree struct {
	nodes map[string]*models.CategoryNode
}

// BuildCategoryTree indexes the declarations and computes every node's level.
// A repeated id keeps the last declaration.
func BuildCategoryTree(decls []feed.CategoryDecl) *CategoryTree {
	nodes := make(map[string]*models.CategoryNode, len(decls))
	for _, d := range decls {
		var parent *string
		if d.ParentID != nil && *d.ParentID != "" {
			p := *d.ParentID
			parent = &p
		}
		nodes[d.ID] = &models.CategoryNode{
			ID:       d.ID,
			Name:     d.Name,
			ParentID: parent,
		}
	}

	tree := &CategoryTree{nodes: nodes}
	for _, node := range nodes {
		node.Level = tree.depth(node)
	}
	return tree
}

// depth counts hops to the root; root = 1, capped at MaxCategoryDepth.
func (t *CategoryTree) depth(node *models.CategoryNode) int {
	level := 1
	current := node.ParentID
	for current != nil && level < MaxCategoryDepth {
		parent, ok := t.nodes[*current]
		if !ok {
			break
		}
		level++
		current = parent.ParentID
	}
	return level
}

func (t *CategoryTree) Len() int { return len(t.nodes) }

// Node returns a copy of the node for id.
func (t *CategoryTree) Node(id string) (models.CategoryNode, bool) {
	node, ok := t.nodes[id]
	if !ok {
		return models.CategoryNode{}, false
	}
	return *node, true
}

// ResolveLevels flattens the ancestry of categoryID: the category itself is
// level 1, its parent level 2, its grandparent level 3 and the next ancestor
// goes to Remaining. The walk stops at the first id missing from the tree.
func (t *CategoryTree) ResolveLevels(categoryID string) models.CategoryLevels {
	var levels models.CategoryLevels
	slots := [flattenSteps]**string{&levels.Lvl1, &levels.Lvl2, &levels.Lvl3, &levels.Remaining}

	current := categoryID
	for step := 0; step < flattenSteps; step++ {
		node, ok := t.nodes[current]
		if !ok {
			break
		}
		name := node.Name
		*slots[step] = &name

		if node.ParentID == nil {
			break
		}
		current = *node.ParentID
	}
	return levels
}

// GroupByLevel returns the nodes of each level sorted by id. Used for the
// category summary logged at the start of a run.
func (t *CategoryTree) GroupByLevel() map[int][]models.CategoryNode {
	groups := make(map[int][]models.CategoryNode)
	for _, node := range t.nodes {
		groups[node.Level] = append(groups[node.Level], *node)
	}
	for level := range groups {
		sort.Slice(groups[level], func(i, j int) bool {
			return groups[level][i].ID < groups[level][j].ID
		})
	}
	return groups
}
