package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"bulk-user-provisioner/internal/api"
	"bulk-user-provisioner/internal/assign"
	"bulk-user-provisioner/internal/config"
	"bulk-user-provisioner/internal/gateway"
	"bulk-user-provisioner/internal/logger"
	"bulk-user-provisioner/internal/queue"
	"bulk-user-provisioner/internal/ratelimit"
	"bulk-user-provisioner/internal/store"
)

func main() {
	cfg := config.Load()
	logger.SetupDefault(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	q := queue.NewRedisQueue(cfg)
	defer q.Close()

	var archiver gateway.Archiver
	if s3Archiver, err := gateway.NewS3Archiver(ctx, cfg); err != nil {
		log.Fatalf("init s3 archiver: %v", err)
	} else if s3Archiver != nil {
		archiver = s3Archiver
	}

	gw := gateway.New(st, q, cfg.BulkJobQueue, archiver)
	as := assign.New(st, st, st, st)

	limiterClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewActorBucket(limiterClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	server := api.New(gw, as, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
