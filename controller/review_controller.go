package controller

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateReviewJob registers a job and stores its source document in one
// multipart request: a "name" and "checklistSetId" field plus a "file" part.
func (c *ReviewController) CreateReviewJob(ctx *gin.Context) {
	name := ctx.PostForm("name")
	checklistSetID := ctx.PostForm("checklistSetId")
	if name == "" || checklistSetID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Fields 'name' and 'checklistSetId' are required"})
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
		return
	}
	defer file.Close()

	job, err := c.jobs.CreateReviewJob(name, checklistSetID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := c.documents.UploadReviewDocument(job.ID, file, header)
	if err != nil {
		// The job is useless without its document; undo the registration.
		if derr := c.jobs.DeleteReviewJob(job.ID); derr != nil {
			log.Printf("[CreateReviewJob] Could not clean up job %s: %v", job.ID, derr)
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":  "Review job created successfully",
		"job":      job,
		"document": doc,
	})
}

// RunReviewJob starts the evaluation in the background and returns
// immediately; clients poll the job until it leaves processing.
func (c *ReviewController) RunReviewJob(ctx *gin.Context) {
	jobID := ctx.Param("id")
	if _, _, err := c.jobs.GetReviewJob(jobID); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	go func() {
		if _, err := c.jobs.RunReviewJob(context.Background(), jobID); err != nil {
			log.Printf("[RunReviewJob] Job %s failed: %v", jobID, err)
		}
	}()

	ctx.JSON(http.StatusAccepted, gin.H{"message": "Review job started", "jobId": jobID})
}

// GetReviewJobs lists all jobs with their result summaries
func (c *ReviewController) GetReviewJobs(ctx *gin.Context) {
	jobs, err := c.jobs.GetReviewJobs()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetReviewJob returns one job with its result summary
func (c *ReviewController) GetReviewJob(ctx *gin.Context) {
	job, outcome, err := c.jobs.GetReviewJob(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"job":     job,
		"summary": outcome,
	})
}

// GetReviewResults returns the job's results nested by the checklist shape
func (c *ReviewController) GetReviewResults(ctx *gin.Context) {
	hierarchy, err := c.jobs.GetResultHierarchy(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": hierarchy})
}

// FinalizeReviewJob re-sweeps aggregation and completes the job if possible
func (c *ReviewController) FinalizeReviewJob(ctx *gin.Context) {
	outcome, err := c.jobs.Finalize(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Finalize sweep completed",
		"summary": outcome,
	})
}

// OverrideReviewResult replaces one completed result's verdict with a human
// decision
func (c *ReviewController) OverrideReviewResult(ctx *gin.Context) {
	var req struct {
		Verdict     string `json:"verdict" binding:"required"`
		UserComment string `json:"userComment"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.jobs.Override(ctx.Param("id"), ctx.Param("resultId"), req.Verdict, req.UserComment)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Result overridden successfully",
		"result":  result,
	})
}

// DeleteReviewJob removes a job, its results and its stored documents
func (c *ReviewController) DeleteReviewJob(ctx *gin.Context) {
	jobID := ctx.Param("id")
	if err := c.documents.DeleteJobDocuments(jobID); err != nil {
		log.Printf("[DeleteReviewJob] Could not delete documents of job %s: %v", jobID, err)
	}
	if err := c.jobs.DeleteReviewJob(jobID); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Review job deleted successfully"})
}
