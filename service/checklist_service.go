package services

import (
	"fmt"
	"log"

	model "github.com/Itish41/ReviewEagle/models"
	"gorm.io/gorm"
)

// ChecklistService manages checklist sets and their items. Edits are
// validated against the forest rules up front, so that LoadTree never has to
// reject a set that the service allowed to exist.
type ChecklistService struct {
	db *gorm.DB
}

// NewChecklistService initializes the checklist service.
func NewChecklistService(db *gorm.DB) (*ChecklistService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &ChecklistService{db: db}, nil
}

// CreateChecklistSet registers a new, empty checklist set.
func (s *ChecklistService) CreateChecklistSet(set *model.ChecklistSet) error {
	if set.Name == "" {
		return fmt.Errorf("checklist set name is required")
	}
	if err := s.db.Create(set).Error; err != nil {
		log.Printf("[ChecklistService] Error creating checklist set: %v", err)
		return fmt.Errorf("failed to create checklist set: %w", err)
	}
	return nil
}

// GetChecklistSets lists all sets, newest first.
func (s *ChecklistService) GetChecklistSets() ([]model.ChecklistSet, error) {
	var sets []model.ChecklistSet
	if err := s.db.Order("created_at DESC").Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch checklist sets: %w", err)
	}
	return sets, nil
}

// GetChecklistSet returns one set together with its items.
func (s *ChecklistService) GetChecklistSet(setID string) (*model.ChecklistSet, []model.ChecklistItem, error) {
	var set model.ChecklistSet
	if err := s.db.First(&set, "id = ?", setID).Error; err != nil {
		return nil, nil, fmt.Errorf("checklist set %s not found: %w", setID, err)
	}
	items, err := s.listItems(setID)
	if err != nil {
		return nil, nil, err
	}
	return &set, items, nil
}

// UpdateChecklistSet changes a set's name or description.
func (s *ChecklistService) UpdateChecklistSet(setID, name, description string) (*model.ChecklistSet, error) {
	var set model.ChecklistSet
	if err := s.db.First(&set, "id = ?", setID).Error; err != nil {
		return nil, fmt.Errorf("checklist set %s not found: %w", setID, err)
	}
	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if description != "" {
		updates["description"] = description
	}
	if len(updates) > 0 {
		if err := s.db.Model(&set).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update checklist set %s: %w", setID, err)
		}
	}
	return &set, nil
}

// DeleteChecklistSet removes a set and, via the schema's cascade, its items.
// Sets that running or past jobs reference cannot be removed.
func (s *ChecklistService) DeleteChecklistSet(setID string) error {
	var count int64
	if err := s.db.Model(&model.ReviewJob{}).Where("checklist_set_id = ?", setID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check jobs for checklist set %s: %w", setID, err)
	}
	if count > 0 {
		return fmt.Errorf("checklist set %s is referenced by %d review job(s)", setID, count)
	}
	if err := s.db.Delete(&model.ChecklistSet{}, "id = ?", setID).Error; err != nil {
		return fmt.Errorf("failed to delete checklist set %s: %w", setID, err)
	}
	return nil
}

// CreateChecklistItem adds one item to a set. The parent, when given, must
// already exist in the same set; the item type must be one of the known ones.
func (s *ChecklistService) CreateChecklistItem(item *model.ChecklistItem) error {
	if item.Name == "" {
		return fmt.Errorf("checklist item name is required")
	}
	if item.ItemType == "" {
		item.ItemType = model.ItemTypeSimple
	}
	if item.ItemType != model.ItemTypeSimple && item.ItemType != model.ItemTypeFlow {
		return fmt.Errorf("unknown item type %q", item.ItemType)
	}

	var set model.ChecklistSet
	if err := s.db.First(&set, "id = ?", item.SetID).Error; err != nil {
		return fmt.Errorf("checklist set %s not found: %w", item.SetID, err)
	}

	if item.ParentID != nil {
		var parent model.ChecklistItem
		if err := s.db.First(&parent, "id = ?", *item.ParentID).Error; err != nil {
			return fmt.Errorf("parent item %s not found: %w", *item.ParentID, err)
		}
		if parent.SetID != item.SetID {
			return fmt.Errorf("parent item %s belongs to a different set", *item.ParentID)
		}
	}

	if err := s.db.Create(item).Error; err != nil {
		log.Printf("[ChecklistService] Error creating checklist item: %v", err)
		return fmt.Errorf("failed to create checklist item: %w", err)
	}
	return nil
}

// UpdateChecklistItem applies field changes to one item. Re-parenting is
// validated by rebuilding the set's tree with the proposed change, which
// rejects cycles and cross-set parents in one place.
func (s *ChecklistService) UpdateChecklistItem(itemID string, changes map[string]interface{}) (*model.ChecklistItem, error) {
	var item model.ChecklistItem
	if err := s.db.First(&item, "id = ?", itemID).Error; err != nil {
		return nil, fmt.Errorf("checklist item %s not found: %w", itemID, err)
	}

	if itemType, ok := changes["item_type"].(string); ok {
		if itemType != model.ItemTypeSimple && itemType != model.ItemTypeFlow {
			return nil, fmt.Errorf("unknown item type %q", itemType)
		}
	}

	if rawParent, ok := changes["parent_id"]; ok {
		items, err := s.listItems(item.SetID)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if items[i].ID != itemID {
				continue
			}
			switch parent := rawParent.(type) {
			case nil:
				items[i].ParentID = nil
			case string:
				items[i].ParentID = &parent
			default:
				return nil, fmt.Errorf("parent_id must be a string or null")
			}
		}
		if _, err := NewChecklistTree(items); err != nil {
			return nil, fmt.Errorf("re-parenting item %s is not allowed: %w", itemID, err)
		}
	}

	if err := s.db.Model(&item).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update checklist item %s: %w", itemID, err)
	}
	return &item, nil
}

// DeleteChecklistItem removes one item; its descendants go with it via the
// schema's cascade on parent_id. Items that review results reference cannot
// be removed: results belong to their job and are destroyed only with it.
func (s *ChecklistService) DeleteChecklistItem(itemID string) error {
	var item model.ChecklistItem
	if err := s.db.First(&item, "id = ?", itemID).Error; err != nil {
		return fmt.Errorf("checklist item %s not found: %w", itemID, err)
	}

	items, err := s.listItems(item.SetID)
	if err != nil {
		return err
	}
	// The cascade would take the whole subtree, so the guard covers it too.
	subtree := collectSubtreeIDs(items, itemID)

	var count int64
	if err := s.db.Model(&model.ReviewResult{}).Where("check_id IN ?", subtree).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check results for checklist item %s: %w", itemID, err)
	}
	if count > 0 {
		return fmt.Errorf("checklist item %s is referenced by %d review result(s)", itemID, count)
	}

	if err := s.db.Delete(&model.ChecklistItem{}, "id = ?", itemID).Error; err != nil {
		return fmt.Errorf("failed to delete checklist item %s: %w", itemID, err)
	}
	return nil
}

// collectSubtreeIDs returns rootID plus the ids of every descendant, walking
// the parent links of the given items.
func collectSubtreeIDs(items []model.ChecklistItem, rootID string) []string {
	children := make(map[string][]string)
	for _, it := range items {
		if it.ParentID != nil {
			children[*it.ParentID] = append(children[*it.ParentID], it.ID)
		}
	}

	ids := []string{rootID}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids
}

// LoadTree snapshots a set into an immutable tree for a review job. A set
// with no items is an error since there would be nothing to review.
func (s *ChecklistService) LoadTree(setID string) (*ChecklistTree, error) {
	var set model.ChecklistSet
	if err := s.db.First(&set, "id = ?", setID).Error; err != nil {
		return nil, fmt.Errorf("checklist set %s not found: %w", setID, err)
	}
	items, err := s.listItems(setID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("checklist set %s has no items", setID)
	}
	return NewChecklistTree(items)
}

func (s *ChecklistService) listItems(setID string) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	if err := s.db.Where("set_id = ?", setID).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch items of checklist set %s: %w", setID, err)
	}
	return items, nil
}
