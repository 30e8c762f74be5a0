package recording

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ObjectStore persists audio bytes durably and returns a public playback URL.
type ObjectStore interface {
	// Upload writes data at key inside the bucket. Writing the same key again
	// overwrites, so redelivered notifications cannot duplicate objects.
	Upload(ctx context.Context, key string, data []byte, contentType string) (publicURL string, err error)
}

// RESTObjectStore talks to an S3-compatible storage REST API (the managed
// storage the platform database ships with) using a service key.
type RESTObjectStore struct {
	client  *resty.Client
	baseURL string
	bucket  string
}

func NewRESTObjectStore(baseURL, serviceKey, bucket string) *RESTObjectStore {
	c := resty.New().
		SetAuthToken(serviceKey).
		SetHeader("apikey", serviceKey)
	return &RESTObjectStore{client: c, baseURL: baseURL, bucket: bucket}
}

func (s *RESTObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(data).
		Post(uploadURL)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("storage upload returned %s: %s", resp.Status(), resp.String())
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key), nil
}
