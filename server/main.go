package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"anonchat/server/config"
	"anonchat/server/handler"
	"anonchat/server/room"
)

const staticPrefix = "/static/"

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log.Logger = log.Logger.Level(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat := room.NewRoom(room.Options{
		HistoryLimit: cfg.HistoryLimit,
		ReplayLimit:  cfg.ReplayLimit,
		Logger:       log.Logger,
	})
	roomCtx, stopRoom := context.WithCancel(context.Background())
	go chat.Run(roomCtx)

	srv := &http.Server{
		Handler:           newRouter(chat, cfg, log.Logger),
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", cfg.Addr).Msg("[server] starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("[server] listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("[server] shutting down")

	// Hijacked websocket connections are not tracked by Shutdown; stopping
	// the room closes them.
	stopRoom()
	<-chat.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[server] forced to shutdown")
	}

	log.Info().Msg("[server] exiting")
}

func newRouter(chat *room.Room, cfg config.Config, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handler.HandleHealth(chat)).Methods(http.MethodGet)
	r.HandleFunc("/ws/anon-chat", handler.HandleWebSocket(chat, handler.ChatOptions{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           logger.With().Str("component", "ws").Logger(),
	}))
	r.HandleFunc("/chat", handler.HandleChatPage(staticPrefix, logger)).Methods(http.MethodGet)
	r.Handle("/", http.RedirectHandler("/chat", http.StatusFound)).Methods(http.MethodGet)
	r.PathPrefix(staticPrefix).Handler(http.StripPrefix(staticPrefix, http.FileServer(http.Dir(cfg.StaticDir))))
	return r
}
