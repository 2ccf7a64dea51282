package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/inkspira/internal/infra/config"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/infra/transport/http"
	"github.com/mkrupp/inkspira/internal/repo/blob"
	"github.com/mkrupp/inkspira/internal/svc/authsvc/authclient"
	"github.com/mkrupp/inkspira/internal/svc/imagesvc"
	"github.com/mkrupp/inkspira/internal/svc/mediasvc"
)

const (
	appName = "inkspira"
	svcName = "imagesvc"
)

type Config struct {
	config.EnvConfig

	Log        logging.LoggerConfig                `envPrefix:"LOG_"`
	Media      mediasvc.MediaConfig                `envPrefix:"MEDIA_"`
	Image      imagesvc.ImageConfig                `envPrefix:"IMAGE_"`
	ImageHTTP  imagesvc.HTTPTransportConfig        `envPrefix:"IMAGE_HTTP_"`
	AuthClient authclient.HTTPClientConfig         `envPrefix:"AUTH_CLIENT_"`
	Blob       blob.FileSystemBlobRepositoryConfig `envPrefix:"BLOB_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	if err := logging.Configure(ctx, cfg.Log, loggerName); err != nil {
		panic(err)
	}

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.imagesvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	// One factory so media and cache repositories share a lock table.
	repoFactory := blob.FileSystemBlobRepositoryFactory(cfg.Blob)

	mediaSvc, err := mediasvc.NewBlobMediaService(ctx, repoFactory, cfg.Media)
	if err != nil {
		return fmt.Errorf("new media service: %w", err)
	}

	imageSvc, err := imagesvc.NewBlobImageService(ctx, repoFactory, mediaSvc, cfg.Image)
	if err != nil {
		return fmt.Errorf("new image service: %w", err)
	}

	authClient := authclient.NewHTTPClient(cfg.AuthClient, nil)
	httpTransport := imagesvc.NewHTTPTransport(imageSvc, authClient, cfg.ImageHTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.ImageHTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
