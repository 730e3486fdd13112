// Command fakeapi serves the in-memory E-Recipe Hub API for local CLI use.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	log "github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/config"
	"github.com/ganjinghwan/erecipehub/internal/apitest"
)

type serverConfig struct {
	Addr  string `env:"FAKEAPI_ADDR"  env-default:"127.0.0.1:8080"`
	Token string `env:"FAKEAPI_TOKEN"`
	Seed  bool   `env:"FAKEAPI_SEED"  env-default:"true"`
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	config.LoadDotenvIfPresent(".env", log.StandardLogger())

	var cfg serverConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.WithError(err).Fatal("failed to read environment")
	}

	fake := apitest.NewUnstarted()
	fake.Token = cfg.Token
	if cfg.Seed {
		seed(fake)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           requestLogger(fake.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("starting fake api")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.WithField("signal", fmt.Sprintf("%v", sig)).Info("shutting down")

	if err := srv.Close(); err != nil {
		log.WithError(err).Error("server close error")
	}
}

func seed(fake *apitest.Server) {
	start := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	past := time.Now().UTC().Add(-30 * 24 * time.Hour).Truncate(24 * time.Hour)

	open := fake.AddEvent(apitest.Event{
		Name:        "Chili Cookoff",
		Description: "Bring your best pot.",
		StartDate:   &start,
		EndDate:     &end,
		OrganizerID: apitest.OrganizerID,
	})
	fake.AddEvent(apitest.Event{
		Name:        "Winter Bake Sale",
		Description: "Cakes and pies.",
		StartDate:   &past,
		EndDate:     &past,
		OrganizerID: apitest.OrganizerID,
	})
	fake.AddCandidates(open.Slug,
		apitest.User{ID: "user1", Username: "ana", Email: "ana@example.com"},
		apitest.User{ID: "user2", Username: "ben", Email: "ben@example.com"},
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		began := time.Now()
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"request_id": r.Header.Get("X-Request-ID"),
			"duration":   time.Since(began).String(),
		}).Info("request")
	})
}
