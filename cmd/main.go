package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/jaam8/polls/internal/api"
	"github.com/jaam8/polls/internal/config"
	"github.com/jaam8/polls/internal/models"
	"github.com/jaam8/polls/internal/repository"
	srv "github.com/jaam8/polls/internal/service"
	"github.com/jaam8/polls/pkg/database"
	"github.com/jaam8/polls/pkg/logger"
	"github.com/jaam8/polls/pkg/tarantool"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
	logg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		logg.Fatalf("failed to load config: %s", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		logg.Fatalf("failed to initalize logger: %s", err)
	}

	err = run(ctx, stop, cfg, log)
	if err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run serves until ctx is done. Everything it opens is closed before it
// returns, errors included.
func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, log *zap.Logger) error {
	repo, closeRepo, err := openRepository(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage, err)
	}
	defer closeRepo()

	service := srv.New(repo, log, srv.WithIndexLimit(cfg.IndexLimit))

	router, err := api.NewRouter(service, log, cfg.AdminKey)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	if cfg.Mattermost.Enabled() {
		webSocketClient, err := startBot(ctx, cfg.Mattermost, service, log)
		if err != nil {
			return fmt.Errorf("failed to start mattermost bot: %w", err)
		}
		defer webSocketClient.Close()
	} else {
		log.Info("mattermost bot disabled")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown http server", zap.Error(err))
	}
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("server graceful stopped")
	return nil
}

func openRepository(cfg *config.Config, log *zap.Logger) (srv.Repository, func(), error) {
	if cfg.Storage == config.StorageTarantool {
		conn, err := tarantool.New(cfg.Tarantool)
		if err != nil {
			return nil, nil, err
		}
		return repository.New(conn, log), func() {
			if err := conn.CloseGraceful(); err != nil {
				log.Error("failed to close tarantool connection", zap.Error(err))
			}
		}, nil
	}

	db, err := database.New(cfg.Database, &models.Question{}, &models.Choice{})
	if err != nil {
		return nil, nil, err
	}
	return repository.NewSQL(db, log), func() {
		if err := database.Close(db); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}, nil
}

func startBot(ctx context.Context, cfg config.Mattermost, service *srv.PollService, log *zap.Logger) (*model.WebSocketClient, error) {
	client := model.NewAPIv4Client(cfg.URL)
	client.SetToken(cfg.BotToken)
	user, _, err := client.GetUser("me", "")
	if err != nil {
		return nil, err
	}

	webSocketClient, err := model.NewWebSocketClient4(cfg.WsURL, cfg.BotToken)
	if err != nil {
		return nil, err
	}
	webSocketClient.Listen()

	handler := api.NewPollHandler(service, log, client, cfg.ChannelID)
	go handler.Serve(ctx, webSocketClient.EventChannel, user.Id)

	log.Info("mattermost bot started", zap.String("bot_id", user.Id), zap.String("channel_id", cfg.ChannelID))
	return webSocketClient, nil
}
