package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/sirupsen/logrus"

    "vrpsearch/internal/api"
    "vrpsearch/internal/buildinfo"
    "vrpsearch/internal/config"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        logrus.WithError(err).Fatal("invalid configuration")
    }
    cfg.ConfigureLogger()

    srvDeps, err := api.NewServer(cfg)
    if err != nil {
        logrus.WithError(err).Fatal("failed to init server")
    }

    addr := ":" + cfg.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           srvDeps.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    // Start webhook worker
    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    go func() {
        logrus.WithFields(logrus.Fields{"addr": addr, "version": buildinfo.Version}).Info("API listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logrus.WithError(err).Fatal("server error")
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
    <-stop
    logrus.Info("shutting down")

    ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil {
        logrus.WithError(err).Warn("http shutdown")
    }
    worker.Stop()
    if err := srvDeps.Close(); err != nil {
        logrus.WithError(err).Warn("close server")
    }
}
