package services

import (
	"testing"

	model "github.com/Itish41/ReviewEagle/models"
	"github.com/stretchr/testify/assert"
)

func TestCollectSubtreeIDs(t *testing.T) {
	items := []model.ChecklistItem{
		newItem("root", "Root", nil),
		newItem("parent", "Parent", strPtr("root")),
		newItem("leaf-a", "Leaf A", strPtr("parent")),
		newItem("leaf-b", "Leaf B", strPtr("parent")),
		newItem("leaf-c", "Leaf C", strPtr("root")),
	}

	tests := []struct {
		name   string
		rootID string
		want   []string
	}{
		{
			// Deleting an item cascades its whole subtree, so the delete
			// guard must count results for every descendant, not just the
			// item itself.
			name:   "internal node includes all descendants",
			rootID: "parent",
			want:   []string{"parent", "leaf-a", "leaf-b"},
		},
		{
			name:   "root covers the full tree",
			rootID: "root",
			want:   []string{"root", "parent", "leaf-a", "leaf-b", "leaf-c"},
		},
		{
			name:   "leaf is just itself",
			rootID: "leaf-c",
			want:   []string{"leaf-c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, collectSubtreeIDs(items, tt.rootID))
		})
	}
}
