package services

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	model "github.com/Itish41/ReviewEagle/models"
	"gorm.io/gorm"
)

// DocumentService stores uploaded review documents in S3 and keeps a row per
// upload so a job can find its source document again at run time.
type DocumentService struct {
	s3Client *s3.S3
	db       *gorm.DB
	bucket   string
}

// NewDocumentService initializes S3 from the environment. AWS_ACCESS_KEY_ID
// and AWS_SECRET_ACCESS_KEY are optional; without them the default credential
// chain applies.
func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION environment variable is not set")
	}
	bucket := os.Getenv("S3_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME environment variable is not set")
	}

	config := &aws.Config{Region: aws.String(region)}
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" && secretKey != "" {
		config.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	log.Printf("[DocumentService] Using bucket %s in region %s", bucket, region)

	return &DocumentService{s3Client: s3.New(sess), db: db, bucket: bucket}, nil
}

// UploadReviewDocument streams one uploaded file to S3 and records it against
// the job. Only PDF files are accepted.
func (s *DocumentService) UploadReviewDocument(jobID string, file multipart.File, header *multipart.FileHeader) (*model.ReviewDocument, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if ext != "pdf" {
		return nil, fmt.Errorf("unsupported file type %q: only pdf files can be reviewed", ext)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	key := fmt.Sprintf("review-documents/%s/%d-%s", jobID, time.Now().UnixNano(), header.Filename)
	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(MediaTypePDF),
	})
	if err != nil {
		log.Printf("[DocumentService] Error uploading %s to S3: %v", header.Filename, err)
		return nil, fmt.Errorf("failed to upload document to S3: %w", err)
	}

	doc := &model.ReviewDocument{
		JobID:     jobID,
		Filename:  header.Filename,
		S3Key:     key,
		FileType:  ext,
		SizeBytes: int64(len(data)),
	}
	if err := s.db.Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to record uploaded document: %w", err)
	}
	log.Printf("[DocumentService] Uploaded %s (%d bytes) for job %s", header.Filename, doc.SizeBytes, jobID)
	return doc, nil
}

// FetchJobDocument downloads the job's source document from S3 and returns
// its bytes with the matching media type.
func (s *DocumentService) FetchJobDocument(jobID string) (DocumentContent, error) {
	var doc model.ReviewDocument
	if err := s.db.Where("job_id = ?", jobID).Order("created_at ASC").First(&doc).Error; err != nil {
		return DocumentContent{}, fmt.Errorf("no document found for job %s: %w", jobID, err)
	}

	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(doc.S3Key),
	})
	if err != nil {
		return DocumentContent{}, fmt.Errorf("failed to download document %s: %w", doc.S3Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return DocumentContent{}, fmt.Errorf("failed to read document %s: %w", doc.S3Key, err)
	}

	mediaType := doc.FileType
	if mediaType == "pdf" {
		mediaType = MediaTypePDF
	}
	return DocumentContent{Bytes: data, MediaType: mediaType}, nil
}

// DeleteJobDocuments removes the job's objects from S3. The database rows go
// with the job via the schema's cascade.
func (s *DocumentService) DeleteJobDocuments(jobID string) error {
	var docs []model.ReviewDocument
	if err := s.db.Where("job_id = ?", jobID).Find(&docs).Error; err != nil {
		return fmt.Errorf("failed to fetch documents of job %s: %w", jobID, err)
	}
	for _, doc := range docs {
		_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(doc.S3Key),
		})
		if err != nil {
			log.Printf("[DocumentService] Error deleting %s from S3: %v", doc.S3Key, err)
		}
	}
	return nil
}
