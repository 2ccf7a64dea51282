package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/inkspira/internal/infra/clock"
	"github.com/mkrupp/inkspira/internal/infra/config"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	"github.com/mkrupp/inkspira/internal/infra/transport/http"
	"github.com/mkrupp/inkspira/internal/repo/tree"
	"github.com/mkrupp/inkspira/internal/svc/artsvc"
	"github.com/mkrupp/inkspira/internal/svc/authsvc/authclient"
	"github.com/mkrupp/inkspira/internal/svc/imagesvc/imageclient"
)

const (
	appName = "inkspira"
	svcName = "artsvc"
)

type Config struct {
	config.EnvConfig

	Log         logging.LoggerConfig            `envPrefix:"LOG_"`
	Art         artsvc.ArtConfig                `envPrefix:"ART_"`
	HTTP        artsvc.HTTPTransportConfig      `envPrefix:"HTTP_"`
	Tree        tree.SQLiteTreeRepositoryConfig `envPrefix:"TREE_"`
	AuthClient  authclient.HTTPClientConfig     `envPrefix:"AUTH_CLIENT_"`
	ImageClient imageclient.HTTPClientConfig    `envPrefix:"IMAGE_CLIENT_"`
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
	log := logging.GetLogger("cmd.artsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	store, err := tree.NewSQLiteTreeRepository(cfg.Tree)
	if err != nil {
		return fmt.Errorf("new tree repository: %w", err)
	}
	defer store.Close()

	authClient := authclient.NewHTTPClient(cfg.AuthClient, nil)

	repos := artsvc.NewRepositories(
		store,
		authClient,
		imageclient.NewHTTPClient(cfg.ImageClient, nil),
		clock.RealClock{},
		cfg.Art,
	)

	httpTransport := artsvc.NewHTTPTransport(repos, authClient, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
