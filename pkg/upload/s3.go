package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Options configures an S3Store.
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string

	// PathStyle addresses objects as {endpoint}/{bucket}/{key}, which most
	// S3-compatible services need.
	PathStyle bool

	AccessKeyID     string
	SecretAccessKey string

	// PublicBaseURL, when set, is the base of blob URLs (a CDN or public
	// bucket domain). Otherwise URLs point at the S3 endpoint.
	PublicBaseURL string

	// MaxSize limits temp uploads (0 = no limit).
	MaxSize int64
}

// NewS3Client builds an S3 client from opts without consulting shared
// AWS config files. Without keys, requests are sent unsigned.
func NewS3Client(opts S3Options) *s3.Client {
	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if opts.AccessKeyID != "" {
		key, secret := opts.AccessKeyID, opts.SecretAccessKey
		creds = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     key,
				SecretAccessKey: secret,
				Source:          "uireg config",
			}, nil
		})
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	return s3.New(s3.Options{
		Region:                     region,
		Credentials:                creds,
		UsePathStyle:               opts.PathStyle,
		BaseEndpoint:               nonEmpty(opts.Endpoint),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// S3Store stores blobs and temp uploads in an S3 bucket. Temp uploads live
// under {prefix}.uploads/.
type S3Store struct {
	client  *s3.Client
	opts    S3Options
	prefix  string
	timeout time.Duration
}

// NewS3Store creates a store over client.
func NewS3Store(client *s3.Client, opts S3Options) *S3Store {
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{
		client:  client,
		opts:    opts,
		prefix:  prefix,
		timeout: 30 * time.Second,
	}
}

func (s *S3Store) objectKey(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if clean == tempDir || strings.HasPrefix(clean, tempDir+"/") {
		return "", ErrNotFound
	}
	return s.prefix + clean, nil
}

// Upload puts body under key.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", objectKey, err)
	}
	return s.URL(key), nil
}

// Open gets the object stored under key.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", objectKey, err)
	}
	return out.Body, nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	clean, err := CleanKey(key)
	if err != nil {
		clean = key
	}
	objectKey := s.prefix + clean
	switch {
	case s.opts.PublicBaseURL != "":
		return joinURL(s.opts.PublicBaseURL, objectKey)
	case s.opts.Endpoint != "" && s.opts.PathStyle:
		return joinURL(s.opts.Endpoint, s.opts.Bucket+"/"+objectKey)
	case s.opts.Endpoint != "":
		endpoint := s.opts.Endpoint
		scheme, host, ok := strings.Cut(endpoint, "://")
		if ok {
			endpoint = scheme + "://" + s.opts.Bucket + "." + host
		}
		return joinURL(endpoint, objectKey)
	}
	region := s.opts.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, region, objectKey)
}

// KeyFromURL reverses URL, reporting false for URLs of other stores.
func (s *S3Store) KeyFromURL(u string) (string, bool) {
	base := strings.TrimSuffix(s.URL("x"), "x")
	objectKey, ok := strings.CutPrefix(u, base)
	return objectKey, ok && objectKey != ""
}

// Save uploads a temp file and returns its ID.
func (s *S3Store) Save(filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.opts.MaxSize > 0 && size > s.opts.MaxSize {
		return "", ErrTooLarge
	}

	var buf bytes.Buffer
	reader := r
	if s.opts.MaxSize > 0 {
		reader = io.LimitReader(r, s.opts.MaxSize+1)
	}
	n, err := io.Copy(&buf, reader)
	if err != nil {
		return "", err
	}
	if s.opts.MaxSize > 0 && n > s.opts.MaxSize {
		return "", ErrTooLarge
	}

	tempID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(s.tempKey(tempID)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 temp upload: %w", err)
	}
	return tempID, nil
}

// Claim fetches a temp upload; closing the File deletes the object.
func (s *S3Store) Claim(tempID string) (*File, error) {
	if _, err := uuid.Parse(tempID); err != nil {
		return nil, ErrNotFound
	}
	key := s.tempKey(tempID)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ErrNotFound
	}
	data, err := io.ReadAll(out.Body)
	out.Body.Close()
	if err != nil {
		return nil, err
	}

	filename := tempID
	if fn, ok := out.Metadata["original-filename"]; ok {
		filename = fn
	}
	contentType := "application/octet-stream"
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return &File{
		ID:          tempID,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Reader: &deleteObjectOnClose{
			Reader: bytes.NewReader(data),
			delete: func() error { return s.deleteObject(key) },
		},
	}, nil
}

// Cleanup removes temp uploads older than maxAge.
func (s *S3Store) Cleanup(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	ctx := context.Background()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(s.prefix + tempDir + "/"),
	})
	var expired []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				expired = append(expired, *obj.Key)
			}
		}
	}

	var errs []error
	for _, key := range expired {
		if err := s.deleteObject(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *S3Store) tempKey(tempID string) string {
	return s.prefix + tempDir + "/" + tempID
}

func (s *S3Store) deleteObject(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	return err
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

type deleteObjectOnClose struct {
	io.Reader
	delete func() error
}

func (r *deleteObjectOnClose) Close() error {
	return r.delete()
}
