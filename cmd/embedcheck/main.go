// Command embedcheck starts the configured embedding worker, embeds a few
// sample texts and reports what it sees. Use it to verify a worker install
// before pointing recall at it.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/recall-mcp/internal/config"
	"github.com/dshills/recall-mcp/internal/embedder"
	"github.com/dshills/recall-mcp/internal/logging"
)

var samples = []string{
	"Use errgroup to fan out searches across stores",
	"Fan out store searches concurrently with an errgroup",
	"The cafeteria serves soup on Tuesdays",
}

func main() {
	var configFile string

	cmd := &cobra.Command{
		Use:          "embedcheck [text...]",
		Short:        "Check that the embedding worker starts and answers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile, args)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string, texts []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: true})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	if len(texts) == 0 {
		texts = samples
	}

	locate := embedder.CommandLocator(cfg.Embedding.Command, cfg.Embedding.Args)
	command, args, err := locate()
	if err != nil {
		return err
	}
	fmt.Printf("Worker: %s %v\n", command, args)

	client := embedder.NewClient(embedder.Config{
		Locate:         locate,
		ReadyMarker:    cfg.Embedding.ReadyMarker,
		StartupTimeout: cfg.Embedding.StartupTimeout,
		RequestTimeout: cfg.Embedding.RequestTimeout,
	}, logger.Logger)
	defer func() { _ = client.Shutdown() }()

	start := time.Now()
	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		fmt.Println("\n✗ FAILURE: embedding request failed")
		return err
	}
	fmt.Printf("\nFirst batch (including startup): %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Texts: %d\n", len(texts))
	fmt.Printf("  Dimensions: %d\n", client.Dimensions())
	fmt.Printf("  Health check: %v\n", client.HealthCheck(ctx))

	if len(vectors) > 1 {
		fmt.Printf("\nCosine similarity to %q:\n", texts[0])
		for i := 1; i < len(vectors); i++ {
			fmt.Printf("  %.4f  %s\n", cosine(vectors[0], vectors[i]), texts[i])
		}
	}

	start = time.Now()
	if _, err := client.Embed(ctx, texts[:1]); err != nil {
		return err
	}
	fmt.Printf("\nWarm single embed: %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Println("\n✓ SUCCESS: embedding worker is usable")
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
