package services

import (
	"fmt"

	model "github.com/Itish41/ReviewEagle/models"
)

// ChecklistTree is an immutable snapshot of one checklist set, taken when a
// review job starts. All parent/child lookups during evaluation and
// aggregation go through the snapshot so that concurrent edits to the set
// cannot change the shape of a running job.
type ChecklistTree struct {
	nodes    map[string]*model.ChecklistItem
	children map[string][]*model.ChecklistItem
	roots    []*model.ChecklistItem
	ordered  []*model.ChecklistItem
}

// NewChecklistTree builds a snapshot from the given items and validates that
// they form a forest: every parent must exist in the same set and no item may
// be its own ancestor.
func NewChecklistTree(items []model.ChecklistItem) (*ChecklistTree, error) {
	t := &ChecklistTree{
		nodes:    make(map[string]*model.ChecklistItem, len(items)),
		children: make(map[string][]*model.ChecklistItem),
	}

	for i := range items {
		item := &items[i]
		if _, dup := t.nodes[item.ID]; dup {
			return nil, fmt.Errorf("duplicate checklist item id %s", item.ID)
		}
		t.nodes[item.ID] = item
		t.ordered = append(t.ordered, item)
	}

	for _, item := range t.ordered {
		if item.ParentID == nil {
			t.roots = append(t.roots, item)
			continue
		}
		parent, ok := t.nodes[*item.ParentID]
		if !ok {
			return nil, fmt.Errorf("checklist item %s references missing parent %s", item.ID, *item.ParentID)
		}
		t.children[parent.ID] = append(t.children[parent.ID], item)
	}

	// Walk upward from every node; a chain longer than the node count means
	// the parent graph loops somewhere.
	for _, item := range t.ordered {
		steps := 0
		for cur := item; cur.ParentID != nil; cur = t.nodes[*cur.ParentID] {
			steps++
			if steps > len(t.ordered) {
				return nil, fmt.Errorf("checklist item %s is part of a parent cycle", item.ID)
			}
		}
	}

	return t, nil
}

// GetNode returns the item with the given id, or nil if the snapshot does not
// contain it.
func (t *ChecklistTree) GetNode(checkID string) *model.ChecklistItem {
	return t.nodes[checkID]
}

// GetChildren returns the direct children of the given item, in set order.
func (t *ChecklistTree) GetChildren(parentID string) []*model.ChecklistItem {
	return t.children[parentID]
}

// Roots returns the top-level items of the forest.
func (t *ChecklistTree) Roots() []*model.ChecklistItem {
	return t.roots
}

// AllNodes returns every item in the snapshot, in set order.
func (t *ChecklistTree) AllNodes() []*model.ChecklistItem {
	return t.ordered
}

// Leaves returns the items with no children. Only leaves are sent to the
// judge; everything above them is resolved by aggregation.
func (t *ChecklistTree) Leaves() []*model.ChecklistItem {
	var leaves []*model.ChecklistItem
	for _, item := range t.ordered {
		if len(t.children[item.ID]) == 0 {
			leaves = append(leaves, item)
		}
	}
	return leaves
}

// IsLeaf reports whether the given item has no children.
func (t *ChecklistTree) IsLeaf(checkID string) bool {
	return len(t.children[checkID]) == 0
}
