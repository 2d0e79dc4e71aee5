package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	model "github.com/Itish41/ReviewEagle/models"
	"gorm.io/gorm"
)

const findingsIndex = "review_results"

// SearchService mirrors completed review results into Elasticsearch so that
// findings can be searched across jobs. The mirror is best-effort: a missing
// or unreachable cluster degrades search, never reviews.
type SearchService struct {
	db       *gorm.DB
	esClient *elasticsearch.Client
}

// SearchFinding is one indexed result as returned by SearchFindings.
type SearchFinding struct {
	JobID         string  `json:"job_id"`
	CheckID       string  `json:"check_id"`
	CheckName     string  `json:"check_name"`
	Verdict       string  `json:"verdict"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
	ExtractedText string  `json:"extracted_text"`
	UserOverride  bool    `json:"user_override"`
}

// NewSearchService connects to ELASTICSEARCH_URL. When the variable is unset
// the service still works, with indexing and search disabled.
func NewSearchService(db *gorm.DB) (*SearchService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	url := os.Getenv("ELASTICSEARCH_URL")
	if url == "" {
		log.Println("[SearchService] ELASTICSEARCH_URL not set, search is disabled")
		return &SearchService{db: db}, nil
	}

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	log.Printf("[SearchService] Connected to Elasticsearch at %s", url)
	return &SearchService{db: db, esClient: esClient}, nil
}

// IndexJobResults pushes every completed result of a job into the findings
// index, joined with the checklist item names.
func (s *SearchService) IndexJobResults(jobID string) error {
	if s.esClient == nil {
		return nil
	}

	var results []model.ReviewResult
	if err := s.db.Where("job_id = ? AND status = ?", jobID, model.ResultStatusCompleted).Find(&results).Error; err != nil {
		return fmt.Errorf("failed to fetch results of job %s: %w", jobID, err)
	}

	for _, r := range results {
		var item model.ChecklistItem
		if err := s.db.First(&item, "id = ?", r.CheckID).Error; err != nil {
			log.Printf("[SearchService] Checklist item %s not found, skipping: %v", r.CheckID, err)
			continue
		}

		finding := SearchFinding{
			JobID:        r.JobID,
			CheckID:      r.CheckID,
			CheckName:    item.Name,
			Verdict:      r.Verdict,
			Explanation:  r.Explanation,
			UserOverride: r.UserOverride,
		}
		if r.Confidence != nil {
			finding.Confidence = *r.Confidence
		}
		finding.ExtractedText = r.ExtractedText

		body, err := json.Marshal(finding)
		if err != nil {
			return fmt.Errorf("failed to marshal finding for result %s: %w", r.ID, err)
		}

		res, err := s.esClient.Index(
			findingsIndex,
			bytes.NewReader(body),
			s.esClient.Index.WithDocumentID(r.ID),
			s.esClient.Index.WithContext(context.Background()),
		)
		if err != nil {
			return fmt.Errorf("failed to index result %s: %w", r.ID, err)
		}
		if res.IsError() {
			msg, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return fmt.Errorf("elasticsearch rejected result %s: %s", r.ID, string(msg))
		}
		res.Body.Close()
	}

	log.Printf("[SearchService] Indexed %d findings for job %s", len(results), jobID)
	return nil
}

// SearchFindings runs a full-text query over check names, explanations and
// extracted document text.
func (s *SearchService) SearchFindings(query string) ([]SearchFinding, error) {
	if s.esClient == nil {
		return nil, fmt.Errorf("search is disabled: ELASTICSEARCH_URL is not set")
	}
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"check_name", "explanation", "extracted_text"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex(findingsIndex),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch search error: %s", string(msg))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source SearchFinding `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	findings := make([]SearchFinding, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		findings = append(findings, hit.Source)
	}
	return findings, nil
}
