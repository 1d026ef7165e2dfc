package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"slidesmith/config"
	"slidesmith/deck"
)

// S3Service mirrors generated artifacts to an S3-compatible bucket
// (Cloudflare R2 in production). The mirror is strictly best-effort: when
// credentials are absent the service reports unavailable, and every remote
// failure is logged and returned as an error for the caller to ignore.
type S3Service struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

// S3ObjectInfo describes one mirrored object.
type S3ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

func NewS3Service(cfg config.Config) *S3Service {
	r2 := cfg.R2
	if r2.AccountID == "" || r2.AccessKeyID == "" || r2.SecretAccessKey == "" {
		log.Printf("[S3] R2 credentials not fully configured, mirroring disabled")
		return &S3Service{}
	}

	endpoint := r2.EndpointURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"), // R2 uses the "auto" region
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(r2.AccessKeyID, r2.SecretAccessKey, ""),
		),
	)
	if err != nil {
		log.Printf("[S3] failed to initialize client: %v", err)
		return &S3Service{}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Printf("[S3] client initialized for bucket %s", r2.Bucket)
	return &S3Service{client: client, bucket: r2.Bucket, endpoint: endpoint}
}

// IsAvailable reports whether the mirror is configured and usable.
func (s *S3Service) IsAvailable() bool {
	return s.client != nil
}

// fileKey builds the deterministic object key:
// {category}/{presentation_id}/{yyyy/mm/dd}/{filename}
func (s *S3Service) fileKey(presentationID, filename, category string) string {
	datePath := time.Now().Format("2006/01/02")
	safe := strings.NewReplacer(" ", "_", "/", "_").Replace(filename)
	return fmt.Sprintf("%s/%s/%s/%s", category, presentationID, datePath, safe)
}

func (s *S3Service) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}

// UploadFile uploads a local file and returns its public URL.
func (s *S3Service) UploadFile(ctx context.Context, path, presentationID, filename, category string) (string, error) {
	if !s.IsAvailable() {
		return "", WrapError("s3", "UploadFile", errors.New("service not available"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", WrapError("s3", "UploadFile", err)
	}
	return s.UploadBytes(ctx, data, presentationID, filename, category, contentTypeFor(filename))
}

// UploadBytes uploads an in-memory buffer and returns its public URL.
func (s *S3Service) UploadBytes(ctx context.Context, data []byte, presentationID, filename, category, contentType string) (string, error) {
	if !s.IsAvailable() {
		return "", WrapError("s3", "UploadBytes", errors.New("service not available"))
	}
	if contentType == "" {
		contentType = contentTypeFor(filename)
	}
	key := s.fileKey(presentationID, filename, category)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"presentation_id":   presentationID,
			"uploaded_at":       time.Now().Format(time.RFC3339),
			"original_filename": filename,
		},
	})
	if err != nil {
		return "", WrapError("s3", "UploadBytes", err)
	}

	url := s.objectURL(key)
	log.Printf("[S3] uploaded %s", url)
	return url, nil
}

// FileURL returns the public URL for key after confirming the object exists.
func (s *S3Service) FileURL(ctx context.Context, key string) (string, bool) {
	if !s.IsAvailable() {
		return "", false
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if !errors.As(err, &nf) {
			log.Printf("[S3] head %s failed: %v", key, err)
		}
		return "", false
	}
	return s.objectURL(key), true
}

// DeleteFile removes a single object.
func (s *S3Service) DeleteFile(ctx context.Context, key string) error {
	if !s.IsAvailable() {
		return WrapError("s3", "DeleteFile", errors.New("service not available"))
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return WrapError("s3", "DeleteFile", err)
}

// ListPresentationFiles lists every mirrored object under a presentation id.
func (s *S3Service) ListPresentationFiles(ctx context.Context, presentationID string) []S3ObjectInfo {
	if !s.IsAvailable() {
		return nil
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fmt.Sprintf("presentations/%s/", presentationID)),
	})
	if err != nil {
		log.Printf("[S3] list failed for presentation %s: %v", presentationID, err)
		return nil
	}

	files := make([]S3ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		info := S3ObjectInfo{URL: s.objectURL(aws.ToString(obj.Key))}
		info.Key = aws.ToString(obj.Key)
		info.Size = aws.ToInt64(obj.Size)
		if obj.LastModified != nil {
			info.LastModified = *obj.LastModified
		}
		files = append(files, info)
	}
	return files
}

// DeletePresentationFiles bulk-deletes everything mirrored for one id.
func (s *S3Service) DeletePresentationFiles(ctx context.Context, presentationID string) error {
	if !s.IsAvailable() {
		return WrapError("s3", "DeletePresentationFiles", errors.New("service not available"))
	}
	files := s.ListPresentationFiles(ctx, presentationID)
	if len(files) == 0 {
		return nil
	}

	objects := make([]s3types.ObjectIdentifier, len(files))
	for i, f := range files {
		objects[i] = s3types.ObjectIdentifier{Key: aws.String(f.Key)}
	}
	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &s3types.Delete{Objects: objects},
	})
	if err != nil {
		return WrapError("s3", "DeletePresentationFiles", err)
	}
	log.Printf("[S3] deleted %d objects for presentation %s", len(files), presentationID)
	return nil
}

// UploadPresentationData mirrors a presentation's JSON record and its pptx
// file if one exists. Returns the URLs that made it; partial results are
// fine, the caller only logs them.
func (s *S3Service) UploadPresentationData(ctx context.Context, p *deck.Presentation) map[string]string {
	uploaded := make(map[string]string)
	if !s.IsAvailable() {
		return uploaded
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		url, err := s.UploadBytes(ctx, data, p.ID, p.ID+"_structure.json", "presentations", "application/json")
		if err != nil {
			log.Printf("[S3] mirror of record %s failed: %v", p.ID, err)
		} else {
			uploaded["json_url"] = url
		}
	}

	if p.PPTPath != "" {
		if _, err := os.Stat(p.PPTPath); err == nil {
			url, err := s.UploadFile(ctx, p.PPTPath, p.ID, filepath.Base(p.PPTPath), "presentations")
			if err != nil {
				log.Printf("[S3] mirror of pptx for %s failed: %v", p.ID, err)
			} else {
				uploaded["ppt_url"] = url
			}
		}
	}
	return uploaded
}

// contentTypeFor maps a filename extension to its MIME type.
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
