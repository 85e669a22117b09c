package main

import (
	"context"
	"os"
	"time"

	"google.golang.org/genai"
)

func main() {
	cfg, err := GetConfig()
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	client, err := GetMongoClient(ctx)
	if err != nil {
		Logger.Error("Failed to connect to MongoDB: ", err)
		os.Exit(1)
	}
	defer DisconnectMongoClient()

	var window time.Duration
	if cfg.TimeWindow != "" {
		window, err = parseISODuration(cfg.TimeWindow)
		if err != nil {
			Logger.Warnf("Invalid timeWindow '%s', ignoring: %v", cfg.TimeWindow, err)
			window = 0
		}
	}

	var source TelemetrySource
	if cfg.LogSource == "atlas" {
		source = NewAtlasTelemetrySource(NewAtlasClient(nil), cfg.ProjectId, cfg.ClusterName, window)
	} else {
		source = NewProfilerTelemetrySource(client, cfg.DatabaseName)
	}

	cache := NewMetadataCache(NewMongoMetadataSource(client), cfg.SchemaSampleSize)
	optimizer := NewOptimizer(
		source,
		cache,
		NewMongoExplainRunner(client),
		ExtractOptions{
			MinDurationMillis: cfg.MinDurationMillis,
			ExcludedOpTypes:   cfg.ExcludedOpTypes,
			TimeWindow:        window,
		},
		cfg.NumAnalyzedQueries,
	)

	contexts, err := optimizer.Analyze(ctx)
	if err != nil {
		Logger.Error("Analysis failed: ", err)
		os.Exit(1)
	}
	if len(contexts) == 0 {
		Logger.Info("No slow query patterns to report on")
		return
	}

	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		Logger.Error(err)
		os.Exit(1)
	}
	lc := NewLLMClient(geminiClient)
	if err := lc.GenerateOptimizationReport(ctx, contexts); err != nil {
		Logger.Error("Failed to generate optimization report: ", err)
		os.Exit(1)
	}
}
