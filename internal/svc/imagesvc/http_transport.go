package imagesvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

// ErrNoMultipartFiles is returned for uploads without any file part.
var ErrNoMultipartFiles = fmt.Errorf("%w: no multipart files", domain.ErrInvalidArgument)

const mediaIDParam = "mediaID"

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// PublicBaseURL prefixes the secureUrl of upload results.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" default:"http://localhost:8082"`

	// ContentDispositionDownload controls whether files are served with download headers.
	ContentDispositionDownload bool `env:"CONTENT_DISPOSITION_DOWNLOAD" default:"false"`

	// MultipartFormMaxMemory is the part of a multipart form kept in memory (10MB).
	MultipartFormMaxMemory int64 `env:"MULTIPART_FORM_MAX_MEMORY" default:"10485760"`

	// MaxRequestSize caps the body of an upload request (100MB).
	MaxRequestSize int64 `env:"MAX_REQUEST_SIZE" default:"104857600"`

	// UploadConcurrency bounds how many files of one request are stored in parallel.
	UploadConcurrency int `env:"UPLOAD_CONCURRENCY" default:"4"`
}

// HTTPTransport serves the media API:
//
//	POST   /media       multipart upload, authenticated
//	GET    /media/{id}  public, optional ?width=N
//	DELETE /media/{id}  owner only
type HTTPTransport struct {
	imageSvc ImageService
	log      logging.Logger
	cfg      HTTPTransportConfig
	router   chi.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates the transport. validator resolves bearer tokens,
// usually through the auth service.
func NewHTTPTransport(
	imageSvc ImageService,
	validator http_.TokenValidator,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		imageSvc: imageSvc,
		log:      logging.GetLogger("svc.imagesvc.http_transport"),
		cfg:      cfg,
	}

	authorized := http_.AuthorizingMiddleware(validator, ht.log, true)

	r := http_.NewRouter("imagesvc")
	r.With(authorized).Post("/media", ht.HandleUpload)
	r.Get("/media/{"+mediaIDParam+"}", ht.HandleDownload)
	r.With(authorized).Delete("/media/{"+mediaIDParam+"}", ht.HandleDelete)

	ht.router = r

	return ht
}

func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleUpload stores every file of a multipart form and answers 201 with one
// UploadResult per file. A single failing file fails the request.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleUpload(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "media upload failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "media uploaded")
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxRequestSize)

	if err := r.ParseMultipartForm(ht.cfg.MultipartFormMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("%w: request exceeds %d bytes", domain.ErrMediaTooLarge, maxBytesErr.Limit)
		}

		return fmt.Errorf("%w: parse multipart form: %w", domain.ErrInvalidArgument, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var fileHeaders []*multipart.FileHeader
	for _, headers := range r.MultipartForm.File {
		fileHeaders = append(fileHeaders, headers...)
	}

	if len(fileHeaders) == 0 {
		return ErrNoMultipartFiles
	}

	results := make([]domain.UploadResult, len(fileHeaders))

	group, ctx := errgroup.WithContext(r.Context())
	group.SetLimit(max(1, ht.cfg.UploadConcurrency))

	for i, fileHeader := range fileHeaders {
		group.Go(func() error {
			meta, err := ht.uploadFile(ctx, fileHeader)
			if err != nil {
				return fmt.Errorf("%s: %w", fileHeader.Filename, err)
			}

			results[i] = domain.NewUploadResult(meta, ht.cfg.PublicBaseURL)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	log = log.With(logging.Group("upload", "files", len(results)))

	http_.WriteJSON(w, http.StatusCreated, results)

	return nil
}

func (ht *HTTPTransport) uploadFile(ctx context.Context, fileHeader *multipart.FileHeader) (domain.MediaMeta, error) {
	// Reject by header before reading the content.
	if _, err := ht.imageSvc.CheckUploadConstraints(fileHeader.Filename, fileHeader.Size, nil); err != nil {
		return domain.MediaMeta{}, err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ht.imageSvc.MaxSize()+1))
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("read: %w", err)
	}

	meta, err := ht.imageSvc.Upload(ctx, fileHeader.Filename, data)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("upload: %w", err)
	}

	return meta, nil
}

// HandleDelete removes an image owned by the caller.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleDelete(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "media delete failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "media deleted")
		}
	}()

	mediaID, err := domain.ParseMediaID(chi.URLParam(r, mediaIDParam))
	if err != nil {
		return err
	}

	log = log.With(logging.Group("media", "id", mediaID))

	if err := ht.imageSvc.Delete(r.Context(), mediaID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleDownload serves an image or, with ?width=N, a resized variant.
func (ht *HTTPTransport) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if err := ht.handleDownload(w, r); err != nil {
		http_.WriteError(w, err)
	}
}

func (ht *HTTPTransport) handleDownload(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(r.Context(), "media download failed", "error", err)
		} else {
			log.DebugContext(r.Context(), "media downloaded")
		}
	}()

	mediaID, err := domain.ParseMediaID(chi.URLParam(r, mediaIDParam))
	if err != nil {
		return err
	}

	log = log.With(logging.Group("media", "id", mediaID))

	var width int

	if widthStr := r.URL.Query().Get(domain.WidthParam); widthStr != "" {
		width, err = strconv.Atoi(widthStr)
		if err != nil {
			return fmt.Errorf("%w: %q", domain.ErrInvalidWidth, widthStr)
		}
	}

	media, err := ht.imageSvc.Fetch(r.Context(), mediaID, width)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	if ht.cfg.ContentDispositionDownload {
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(media.Meta().Filename))
	}

	w.Header().Set("Content-Type", media.MIMEType())
	w.Header().Set("Content-Length", strconv.FormatInt(media.Size(), 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if _, err := media.WriteTo(w); err != nil {
		log.WarnContext(r.Context(), "write response failed", "error", err)
	}

	return nil
}
