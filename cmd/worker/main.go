package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"bulk-user-provisioner/internal/config"
	"bulk-user-provisioner/internal/logger"
	"bulk-user-provisioner/internal/queue"
	"bulk-user-provisioner/internal/store"
	"bulk-user-provisioner/internal/telemetry"
	"bulk-user-provisioner/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.SetupDefault(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
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

	ingestor := worker.NewIngestor(st, q, cfg.UserCreationQueue)
	provisioner := worker.NewProvisioner(st, st, st, st, cfg.BcryptCost)

	consumers := []*worker.Consumer{
		worker.NewConsumer(q, cfg.BulkJobQueue, ingestor.Handle, cfg.WorkerPollInterval),
		worker.NewConsumer(q, cfg.UserCreationQueue, provisioner.Handle, cfg.WorkerPollInterval),
	}

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	log.Printf("worker started, queues: %s, %s", cfg.BulkJobQueue, cfg.UserCreationQueue)

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *worker.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("consumer stopped: %v", err)
			}
		}(c)
	}
	wg.Wait()
}
