package main

import (
	"log"
	"net/http"

	controller "github.com/Itish41/ReviewEagle/controller"
	"github.com/Itish41/ReviewEagle/initializers"
	middleware "github.com/Itish41/ReviewEagle/middleware"
	service "github.com/Itish41/ReviewEagle/service"

	"github.com/gin-gonic/gin"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Println("[WARN] No .env file found, relying on process environment")
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
}

func main() {
	checklistService, err := service.NewChecklistService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize checklist service: %s", err)
	}
	documentService, err := service.NewDocumentService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize document service: %s", err)
	}
	searchService, err := service.NewSearchService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize search service: %s", err)
	}
	judge, err := service.NewJudgeFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize judge: %s", err)
	}

	jobService := service.NewReviewJobService(
		service.NewJobStore(initializers.DB),
		service.NewResultStore(initializers.DB),
		judge,
		checklistService,
		documentService,
		searchService,
	)

	reviewController := controller.NewReviewController(checklistService, jobService, documentService, searchService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.GlobalRateLimiter.Limit())

	// Checklist management
	router.POST("/checklist-sets", reviewController.CreateChecklistSet)
	router.GET("/checklist-sets", reviewController.GetChecklistSets)
	router.GET("/checklist-sets/:id", reviewController.GetChecklistSet)
	router.PUT("/checklist-sets/:id", reviewController.UpdateChecklistSet)
	router.DELETE("/checklist-sets/:id", reviewController.DeleteChecklistSet)
	router.POST("/checklist-sets/:id/items", reviewController.AddChecklistItem)
	router.PUT("/checklist-sets/:id/items/:itemId", reviewController.UpdateChecklistItem)
	router.DELETE("/checklist-sets/:id/items/:itemId", reviewController.DeleteChecklistItem)

	// Review jobs; creation and runs hit S3 and the judge, so they get the
	// strict limiter
	router.POST("/jobs",
		middleware.StrictRateLimiter.Limit(),
		reviewController.CreateReviewJob)
	router.POST("/jobs/:id/run",
		middleware.StrictRateLimiter.Limit(),
		reviewController.RunReviewJob)
	router.GET("/jobs", reviewController.GetReviewJobs)
	router.GET("/jobs/:id", reviewController.GetReviewJob)
	router.GET("/jobs/:id/results", reviewController.GetReviewResults)
	router.POST("/jobs/:id/finalize", reviewController.FinalizeReviewJob)
	router.POST("/jobs/:id/results/:resultId/override", reviewController.OverrideReviewResult)
	router.DELETE("/jobs/:id", reviewController.DeleteReviewJob)

	// Other endpoints
	router.GET("/search", reviewController.SearchFindings)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.Run(":8080")
}
