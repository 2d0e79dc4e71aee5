package controller

import (
	"net/http"

	"github.com/Itish41/ReviewEagle/models"
	service "github.com/Itish41/ReviewEagle/service"
	"github.com/gin-gonic/gin"
)

// ReviewController manages HTTP requests for checklists, jobs and documents
type ReviewController struct {
	checklists *service.ChecklistService
	jobs       *service.ReviewJobService
	documents  *service.DocumentService
	search     *service.SearchService
}

// NewReviewController initializes the controller with its services
func NewReviewController(checklists *service.ChecklistService, jobs *service.ReviewJobService, documents *service.DocumentService, search *service.SearchService) *ReviewController {
	return &ReviewController{
		checklists: checklists,
		jobs:       jobs,
		documents:  documents,
		search:     search,
	}
}

func (c *ReviewController) CreateChecklistSet(ctx *gin.Context) {
	var set models.ChecklistSet
	if err := ctx.ShouldBindJSON(&set); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := c.checklists.CreateChecklistSet(&set); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, set)
}

// GetChecklistSets retrieves all checklist sets
func (c *ReviewController) GetChecklistSets(ctx *gin.Context) {
	sets, err := c.checklists.GetChecklistSets()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, sets)
}

// GetChecklistSet retrieves one checklist set with its items
func (c *ReviewController) GetChecklistSet(ctx *gin.Context) {
	setID := ctx.Param("id")
	set, items, err := c.checklists.GetChecklistSet(setID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"set":   set,
		"items": items,
	})
}

func (c *ReviewController) UpdateChecklistSet(ctx *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	set, err := c.checklists.UpdateChecklistSet(ctx.Param("id"), req.Name, req.Description)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, set)
}

func (c *ReviewController) DeleteChecklistSet(ctx *gin.Context) {
	if err := c.checklists.DeleteChecklistSet(ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Checklist set deleted successfully"})
}

// AddChecklistItem adds one item to a checklist set
func (c *ReviewController) AddChecklistItem(ctx *gin.Context) {
	var req struct {
		ParentID     *string `json:"parentId"`
		Name         string  `json:"name" binding:"required"`
		Description  string  `json:"description"`
		ItemType     string  `json:"itemType"`
		IsConclusion bool    `json:"isConclusion"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := models.ChecklistItem{
		SetID:        ctx.Param("id"),
		ParentID:     req.ParentID,
		Name:         req.Name,
		Description:  req.Description,
		ItemType:     req.ItemType,
		IsConclusion: req.IsConclusion,
	}
	if err := c.checklists.CreateChecklistItem(&item); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, item)
}

func (c *ReviewController) UpdateChecklistItem(ctx *gin.Context) {
	var req map[string]interface{}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Only whitelisted columns may change through this endpoint.
	changes := map[string]interface{}{}
	for _, field := range []string{"name", "description", "item_type", "is_conclusion", "parent_id", "flow_data"} {
		if v, ok := req[field]; ok {
			changes[field] = v
		}
	}
	if len(changes) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No updatable fields provided"})
		return
	}

	item, err := c.checklists.UpdateChecklistItem(ctx.Param("itemId"), changes)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, item)
}

func (c *ReviewController) DeleteChecklistItem(ctx *gin.Context) {
	if err := c.checklists.DeleteChecklistItem(ctx.Param("itemId")); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Checklist item deleted successfully"})
}
