// Command idea-pipeline runs the full analysis pipeline on one idea described
// in a JSON file and prints the result envelope. Useful for prompt iteration
// without the web app.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"teletext/internal/ideagen"
)

func main() {
	_ = godotenv.Load()

	input := flag.String("input", "", "Path to a JSON file with the raw idea submission")
	pageNum := flag.Int("page", 101, "Page number to render the idea on")
	htmlOut := flag.String("html-out", "", "Optional path to write the rendered page HTML")
	flag.Parse()

	if *input == "" {
		log.Fatal("missing required flag -input")
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	var raw ideagen.RawIdeaInput
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Fatalf("parse input: %v", err)
	}

	caller, err := ideagen.NewAnthropicCallerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	exec := ideagen.NewStageExecutor(caller)
	runner := ideagen.NewLLMStageRunner(exec)
	pipeline := ideagen.NewPipeline(runner)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res := pipeline.RunWithProgress(ctx, ideagen.RequestEnvelope{
		IdeaID:     uuid.NewString(),
		PageNumber: *pageNum,
		Raw:        raw,
	}, func(stage, message string) {
		log.Printf("[%s] %s", stage, message)
	})

	if *htmlOut != "" && res.Visual != nil {
		if err := os.WriteFile(*htmlOut, []byte(res.Visual.HTML), 0o644); err != nil {
			log.Fatalf("write html: %v", err)
		}
		log.Printf("wrote page html to %s", *htmlOut)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(out))

	if !res.Success {
		os.Exit(1)
	}
}
