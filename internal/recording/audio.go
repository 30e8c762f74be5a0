package recording

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// AudioFetcher retrieves finalized recording audio from the provider.
type AudioFetcher interface {
	Fetch(ctx context.Context, recordingURL string) ([]byte, error)
}

// ProviderAudioFetcher downloads the MP3 rendition of a recording using the
// account's Basic-auth credentials.
type ProviderAudioFetcher struct {
	client *resty.Client
}

func NewProviderAudioFetcher(accountSID, authToken string) *ProviderAudioFetcher {
	c := resty.New().SetBasicAuth(accountSID, authToken)
	return &ProviderAudioFetcher{client: c}
}

func (f *ProviderAudioFetcher) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	// The provider exposes format-specific renditions by suffix.
	resp, err := f.client.R().SetContext(ctx).Get(recordingURL + ".mp3")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("recording download returned %s", resp.Status())
	}
	return resp.Body(), nil
}
