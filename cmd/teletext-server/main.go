package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"teletext/internal/ideagen"
	"teletext/internal/store"
	"teletext/internal/telemetry"
	"teletext/internal/webapp"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "teletext.db", "SQLite database path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "teletext-server")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	caller, err := ideagen.NewAnthropicCallerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	exec := ideagen.NewStageExecutor(caller)
	runner := ideagen.NewLLMStageRunner(exec)
	pipeline := ideagen.NewPipeline(runner)
	jobs := webapp.NewRunner(pipeline, st)

	srv := &http.Server{
		Addr:    *addr,
		Handler: webapp.NewServer(st, jobs),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("teletext idea board listening on %s (db=%s)", *addr, *dbPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}

	// Let in-flight pipeline runs settle before exiting so every submitted
	// idea ends published or draft, never stuck in processing.
	log.Println("waiting for in-flight idea pipelines")
	jobs.Wait()
	log.Println("teletext idea board stopped")
}
