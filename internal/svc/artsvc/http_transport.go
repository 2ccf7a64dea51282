package artsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/inkspira/internal/domain"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

// NDJSONContentType selects the streaming variant of the upload endpoint.
const NDJSONContentType = "application/x-ndjson"

// ErrNoImage is returned for artwork uploads without an image part.
var ErrNoImage = fmt.Errorf("%w: no image", domain.ErrInvalidArgument)

const (
	idParam      = "id"
	imageField   = "image"
	maxJSONBytes = 1 << 20
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// MultipartFormMaxMemory is the part of a multipart form kept in memory (10MB).
	MultipartFormMaxMemory int64 `env:"MULTIPART_FORM_MAX_MEMORY" default:"10485760"`

	// MaxUploadSize caps the body of an artwork upload (25MB).
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" default:"26214400"`
}

// HTTPTransport serves the repositories over HTTP. A valid bearer token
// attaches the caller to the request; without one the request is anonymous
// and every repository decides for itself whether that is enough.
type HTTPTransport struct {
	repos  *Repositories
	log    logging.Logger
	cfg    HTTPTransportConfig
	router chi.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

func NewHTTPTransport(repos *Repositories, validator http_.TokenValidator, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		repos: repos,
		log:   logging.GetLogger("svc.artsvc.http_transport"),
		cfg:   cfg,
	}

	r := http_.NewRouter("artsvc")
	r.Use(http_.AuthorizingMiddleware(validator, ht.log, false))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", ht.HandleSignUp)
		r.Post("/signin", ht.HandleSignIn)
		r.Post("/signout", ht.HandleSignOut)
		r.Post("/refresh", ht.HandleRefresh)
		r.Post("/reset", ht.HandleResetPassword)
		r.Post("/reset/confirm", ht.HandleConfirmPasswordReset)
		r.Get("/me", ht.HandleCurrentUser)
	})

	r.Route("/artworks", func(r chi.Router) {
		r.Get("/", ht.HandleListArtworks)
		r.Post("/", ht.HandleCreateArtwork)
		r.Get("/search", ht.HandleSearchArtworks)
		r.Get("/trending", ht.HandleTrendingArtworks)
		r.Get("/{id}", ht.HandleGetArtwork)
		r.Patch("/{id}", ht.HandleUpdateArtwork)
		r.Delete("/{id}", ht.HandleDeleteArtwork)
		r.Post("/{id}/products", ht.HandleCreateProduct)
		r.Get("/{id}/products", ht.HandleListProducts)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", ht.HandleSearchUsers)
		r.Patch("/me", ht.HandleUpdateProfile)
		r.Delete("/me", ht.HandleDeleteUser)
		r.Get("/{id}", ht.HandleGetUser)
		r.Get("/{id}/artworks", ht.HandleUserArtworks)
	})

	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", ht.HandleListFavorites)
		r.Get("/artworks", ht.HandleFavoriteArtworks)
		r.Put("/{id}", ht.HandleAddFavorite)
		r.Delete("/{id}", ht.HandleRemoveFavorite)
		r.Post("/{id}/toggle", ht.HandleToggleFavorite)
	})

	r.Get("/products/{id}", ht.HandleGetProduct)
	r.Delete("/products/{id}", ht.HandleDeleteProduct)

	r.Post("/media", ht.HandleUploadImage)
	r.Get("/media/resized", ht.HandleResizedURL)
	r.Delete("/media/{id}", ht.HandleDeleteImage)

	ht.router = r

	return ht
}

func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// reject logs a request that failed before reaching a repository and answers it.
func (ht *HTTPTransport) reject(w http.ResponseWriter, r *http.Request, err error) {
	ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String())).
		WarnContext(r.Context(), "request rejected", "error", err)
	http_.WriteError(w, err)
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: decode body: %w", domain.ErrInvalidArgument, err)
	}

	return v, nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", domain.ErrInvalidArgument, name, raw)
	}

	return n, nil
}

// Auth

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (ht *HTTPTransport) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[credentialsRequest](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName), http.StatusCreated)
}

func (ht *HTTPTransport) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[credentialsRequest](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Auth.SignIn(r.Context(), req.Email, req.Password), http.StatusOK)
}

func (ht *HTTPTransport) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[refreshTokenRequest](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Auth.SignOut(r.Context(), req.RefreshToken), http.StatusNoContent)
}

func (ht *HTTPTransport) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[refreshTokenRequest](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Auth.RefreshSession(r.Context(), req.RefreshToken), http.StatusOK)
}

func (ht *HTTPTransport) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[resetRequest](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Auth.ResetPassword(r.Context(), req.Email), http.StatusNoContent)
}

func (ht *HTTPTransport) HandleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[resetConfirmRequest](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Auth.ConfirmPasswordReset(r.Context(), req.Token, req.Password), http.StatusNoContent)
}

func (ht *HTTPTransport) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Auth.CurrentUser(r.Context()), http.StatusOK)
}

// Artworks

// HandleListArtworks lists public artworks, optionally of one ?category.
func (ht *HTTPTransport) HandleListArtworks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	if category := r.URL.Query().Get("category"); category != "" {
		http_.WriteResult(w, ht.repos.Artworks.GetArtworksByCategory(r.Context(), category, limit), http.StatusOK)

		return
	}

	http_.WriteResult(w, ht.repos.Artworks.GetPublicArtworks(r.Context(), limit), http.StatusOK)
}

func (ht *HTTPTransport) HandleSearchArtworks(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Artworks.SearchArtworks(r.Context(), r.URL.Query().Get("q")), http.StatusOK)
}

// HandleTrendingArtworks accepts ?window as a Go duration, e.g. 72h.
func (ht *HTTPTransport) HandleTrendingArtworks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	var window time.Duration

	if raw := r.URL.Query().Get("window"); raw != "" {
		if window, err = time.ParseDuration(raw); err != nil || window < 0 {
			ht.reject(w, r, fmt.Errorf("%w: window=%q", domain.ErrInvalidArgument, raw))

			return
		}
	}

	http_.WriteResult(w, ht.repos.Artworks.GetTrendingArtworks(r.Context(), window, limit), http.StatusOK)
}

// HandleGetArtwork returns an artwork and counts the view.
func (ht *HTTPTransport) HandleGetArtwork(w http.ResponseWriter, r *http.Request) {
	artworkID := chi.URLParam(r, idParam)

	res := ht.repos.Artworks.GetArtwork(r.Context(), artworkID)
	if res.IsSuccess() {
		artwork := res.ValueOr(domain.Artwork{})

		// A failed view count does not fail the read.
		if views := ht.repos.Artworks.IncrementViews(r.Context(), artworkID); views.IsSuccess() {
			artwork.Views = views.ValueOr(artwork.Views)
		}

		res = domain.Success(artwork)
	}

	http_.WriteResult(w, res, http.StatusOK)
}

// HandleCreateArtwork creates an artwork from a multipart upload, or from a
// JSON body referencing an uploaded image. Uploads are streamed as NDJSON
// results when the client accepts application/x-ndjson.
func (ht *HTTPTransport) HandleCreateArtwork(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		artwork, err := decodeJSON[domain.Artwork](w, r)
		if err != nil {
			ht.reject(w, r, err)

			return
		}

		http_.WriteResult(w, ht.repos.Artworks.CreateArtwork(r.Context(), artwork), http.StatusCreated)

		return
	}

	upload, err := ht.parseArtworkUpload(w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	results := ht.repos.Artworks.UploadArtwork(r.Context(), upload)

	if !acceptsNDJSON(r) {
		http_.WriteResult(w, domain.Await(results), http.StatusCreated)

		return
	}

	w.Header().Set("Content-Type", NDJSONContentType)
	w.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(w)
	flusher := http.NewResponseController(w)

	for res := range results {
		if err := encoder.Encode(newResultMessage(res)); err != nil {
			ht.log.WarnContext(r.Context(), "write stream failed", "error", err)

			continue
		}

		_ = flusher.Flush()
	}
}

func acceptsNDJSON(r *http.Request) bool {
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		if mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(accept)); err == nil && mediaType == NDJSONContentType {
			return true
		}
	}

	return false
}

func (ht *HTTPTransport) parseArtworkUpload(w http.ResponseWriter, r *http.Request) (ArtworkUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(ht.cfg.MultipartFormMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return ArtworkUpload{}, fmt.Errorf("%w: request exceeds %d bytes", domain.ErrMediaTooLarge, maxBytesErr.Limit)
		}

		return ArtworkUpload{}, fmt.Errorf("%w: parse multipart form: %w", domain.ErrInvalidArgument, err)
	}

	file, header, err := r.FormFile(imageField)
	if err != nil {
		return ArtworkUpload{}, ErrNoImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ArtworkUpload{}, fmt.Errorf("read image: %w", err)
	}

	isPublic := true
	if raw := r.FormValue("isPublic"); raw != "" {
		if isPublic, err = strconv.ParseBool(raw); err != nil {
			return ArtworkUpload{}, fmt.Errorf("%w: isPublic=%q", domain.ErrInvalidArgument, raw)
		}
	}

	var tags []string
	for _, value := range r.MultipartForm.Value["tags"] {
		tags = append(tags, strings.Split(value, ",")...)
	}

	return ArtworkUpload{
		Filename:    header.Filename,
		Data:        data,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Tags:        tags,
		IsPublic:    isPublic,
	}, nil
}

func (ht *HTTPTransport) HandleUpdateArtwork(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeJSON[domain.ArtworkPatch](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Artworks.UpdateArtwork(r.Context(), chi.URLParam(r, idParam), patch), http.StatusOK)
}

func (ht *HTTPTransport) HandleDeleteArtwork(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Artworks.DeleteArtwork(r.Context(), chi.URLParam(r, idParam)), http.StatusNoContent)
}

// Users

func (ht *HTTPTransport) HandleSearchUsers(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Users.SearchUsers(r.Context(), r.URL.Query().Get("q")), http.StatusOK)
}

func (ht *HTTPTransport) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Users.GetUser(r.Context(), chi.URLParam(r, idParam)), http.StatusOK)
}

func (ht *HTTPTransport) HandleUserArtworks(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Artworks.GetUserArtworks(r.Context(), chi.URLParam(r, idParam)), http.StatusOK)
}

func (ht *HTTPTransport) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeJSON[domain.UserPatch](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	http_.WriteResult(w, ht.repos.Users.UpdateProfile(r.Context(), patch), http.StatusOK)
}

func (ht *HTTPTransport) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Users.DeleteUser(r.Context()), http.StatusNoContent)
}

// Favorites

type favoriteState struct {
	ArtworkID string `json:"artworkId"`
	Favorite  bool   `json:"favorite"`
}

func (ht *HTTPTransport) HandleListFavorites(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Favorites.GetFavorites(r.Context()), http.StatusOK)
}

func (ht *HTTPTransport) HandleFavoriteArtworks(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Favorites.GetFavoriteArtworks(r.Context()), http.StatusOK)
}

func (ht *HTTPTransport) HandleAddFavorite(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Favorites.AddFavorite(r.Context(), chi.URLParam(r, idParam)), http.StatusOK)
}

func (ht *HTTPTransport) HandleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Favorites.RemoveFavorite(r.Context(), chi.URLParam(r, idParam)), http.StatusNoContent)
}

func (ht *HTTPTransport) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	artworkID := chi.URLParam(r, idParam)

	res := domain.MapResult(ht.repos.Favorites.ToggleFavorite(r.Context(), artworkID), func(favorite bool) favoriteState {
		return favoriteState{ArtworkID: artworkID, Favorite: favorite}
	})

	http_.WriteResult(w, res, http.StatusOK)
}

// Products

func (ht *HTTPTransport) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	product, err := decodeJSON[domain.Product](w, r)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	product.ArtworkID = chi.URLParam(r, idParam)

	http_.WriteResult(w, ht.repos.Products.CreateProduct(r.Context(), product), http.StatusCreated)
}

func (ht *HTTPTransport) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Products.GetProductsForArtwork(r.Context(), chi.URLParam(r, idParam)), http.StatusOK)
}

func (ht *HTTPTransport) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Products.GetProduct(r.Context(), chi.URLParam(r, idParam)), http.StatusOK)
}

func (ht *HTTPTransport) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Products.DeleteProduct(r.Context(), chi.URLParam(r, idParam)), http.StatusNoContent)
}

// Media

type resizedURL struct {
	URL string `json:"url"`
}

// HandleUploadImage stores the image part of a multipart form and answers 201
// with its upload result.
func (ht *HTTPTransport) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ht.cfg.MaxUploadSize)

	file, header, err := r.FormFile(imageField)
	if err != nil {
		ht.reject(w, r, fmt.Errorf("%w: %w", ErrNoImage, err))

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ht.reject(w, r, fmt.Errorf("%w: read image: %w", domain.ErrInvalidArgument, err))

		return
	}

	http_.WriteResult(w, ht.repos.Media.UploadImage(r.Context(), header.Filename, data), http.StatusCreated)
}

func (ht *HTTPTransport) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	http_.WriteResult(w, ht.repos.Media.DeleteImage(r.Context(), chi.URLParam(r, idParam)), http.StatusNoContent)
}

// HandleResizedURL answers ?url=&width= with the URL of the variant.
func (ht *HTTPTransport) HandleResizedURL(w http.ResponseWriter, r *http.Request) {
	width, err := intParam(r, domain.WidthParam)
	if err != nil {
		ht.reject(w, r, err)

		return
	}

	res := ht.repos.Media.ResizedURL(r.Context(), r.URL.Query().Get("url"), width)

	http_.WriteResult(w, domain.MapResult(res, func(url string) resizedURL { return resizedURL{URL: url} }), http.StatusOK)
}

// resultMessage is one line of an NDJSON result stream.
type resultMessage struct {
	Status string            `json:"status"`
	Data   any               `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Code   domain.ResultCode `json:"code,omitempty"`
}

const (
	statusLoading = "loading"
	statusSuccess = "success"
	statusError   = "error"
)

func newResultMessage[T any](res domain.Result[T]) resultMessage {
	var msg resultMessage

	res.Match(
		func(v T) {
			msg = resultMessage{Status: statusSuccess, Data: v}
		},
		func(message string, code domain.ResultCode) {
			msg = resultMessage{Status: statusError, Error: message, Code: code}
		},
		func() {
			msg = resultMessage{Status: statusLoading}
		},
	)

	return msg
}
