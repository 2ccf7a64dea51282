package imageclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

// HTTPClientConfig holds configuration for the HTTP media client.
type HTTPClientConfig struct {
	// MediaURL is the base URL of the media service
	MediaURL string        `env:"MEDIA_URL" default:"http://localhost:8082"`
	Timeout  time.Duration `env:"MEDIA_TIMEOUT" default:"60s"`
}

// HTTPClient implements ImageClient over the media service HTTP API.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ ImageClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient. If httpClient is nil, a client with
// cfg.Timeout is used.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.imagesvc.http_client"),
		cfg:        cfg,
	}
}

func (c *HTTPClient) send(req *http.Request) (*http.Response, error) {
	if token := context_.AccessTokenFromContext(req.Context()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrUnavailable, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}

	if err := http_.ErrorFromResponse(resp); err != nil {
		resp.Body.Close()

		return nil, err
	}

	return resp, nil
}

func (c *HTTPClient) UploadImage(
	ctx context.Context,
	filename string,
	data []byte,
) (_ domain.UploadResult, err error) {
	log := c.log.With(logging.Group("image", "filename", filename, "size", len(data)))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "image upload request failed", "error", err)
		}
	}()

	var body bytes.Buffer

	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("upload", filename)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("create form file: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return domain.UploadResult{}, fmt.Errorf("write form file: %w", err)
	}

	if err := form.Close(); err != nil {
		return domain.UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http_.NewRequest(ctx, http.MethodPost, c.endpoint("/media"), &body)
	if err != nil {
		return domain.UploadResult{}, err
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return domain.UploadResult{}, err
	}
	defer resp.Body.Close()

	var results []domain.UploadResult
	if err := http_.DecodeJSON(resp, &results); err != nil {
		return domain.UploadResult{}, err
	}

	if len(results) != 1 {
		return domain.UploadResult{}, fmt.Errorf("%w: expected one upload result, got %d", domain.ErrUnavailable, len(results))
	}

	return results[0], nil
}

func (c *HTTPClient) DeleteImage(ctx context.Context, mediaID string) error {
	req, err := http_.NewRequest(ctx, http.MethodDelete, c.endpoint("/media/"+url.PathEscape(mediaID)), nil)
	if err != nil {
		return err
	}

	resp, err := c.send(req)
	if err != nil {
		c.log.DebugContext(ctx, "image delete request failed", "error", err, "id", mediaID)

		return err
	}

	return resp.Body.Close()
}

func (c *HTTPClient) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.MediaURL, "/") + path
}
