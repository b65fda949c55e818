package provider

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/function61/gokit/ezhttp"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

type collectionPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ParentID   string `json:"parent_id,omitempty"`
	VideoCount int    `json:"video_count"`
	TotalSize  int64  `json:"total_size"`
}

type createCollectionRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// HTTPClient implements Provider over the platform's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPClient creates a client. Each call gets its own timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = ezhttp.DefaultTimeout10s
	}
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// ListShards lists every library on the account.
func (c *HTTPClient) ListShards(ctx context.Context) ([]ShardInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	shards := []ShardInfo{}
	if _, err := ezhttp.Get(
		ctx,
		c.endpoint("/libraries"),
		ezhttp.AuthBearer(c.apiKey),
		ezhttp.RespondsJson(&shards, true),
		ezhttp.Client(c.httpClient)); err != nil {
		return nil, apperrors.ProviderError("list shards", err)
	}

	return shards, nil
}

// CreateCollection creates a collection in a library. An empty parentID creates a root.
func (c *HTTPClient) CreateCollection(ctx context.Context, shardID, name, parentID string) (domain.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.Debugf("Creating collection %q under %q in shard %s", name, parentID, shardID)

	res := collectionPayload{}
	if _, err := ezhttp.Post(
		ctx,
		c.endpoint("/libraries/"+url.PathEscape(shardID)+"/collections"),
		ezhttp.AuthBearer(c.apiKey),
		ezhttp.SendJson(&createCollectionRequest{Name: name, ParentID: parentID}),
		ezhttp.RespondsJson(&res, true),
		ezhttp.Client(c.httpClient)); err != nil {
		return domain.Collection{}, apperrors.ProviderError("create collection", err)
	}

	return res.toDomain(shardID), nil
}

// ListCollections returns the flat collection list of a library.
func (c *HTTPClient) ListCollections(ctx context.Context, shardID string) ([]domain.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res := []collectionPayload{}
	if _, err := ezhttp.Get(
		ctx,
		c.endpoint("/libraries/"+url.PathEscape(shardID)+"/collections"),
		ezhttp.AuthBearer(c.apiKey),
		ezhttp.RespondsJson(&res, true),
		ezhttp.Client(c.httpClient)); err != nil {
		return nil, apperrors.ProviderError("list collections", err)
	}

	collections := make([]domain.Collection, 0, len(res))
	for _, p := range res {
		collections = append(collections, p.toDomain(shardID))
	}
	return collections, nil
}

func (c *HTTPClient) endpoint(path string) string {
	return c.baseURL + path
}

func (p collectionPayload) toDomain(shardID string) domain.Collection {
	return domain.Collection{
		CollectionID:   p.ID,
		ShardID:        shardID,
		Name:           p.Name,
		ParentID:       p.ParentID,
		VideoCount:     p.VideoCount,
		TotalSizeBytes: p.TotalSize,
	}
}
