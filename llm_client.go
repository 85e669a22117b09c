package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

type LLMClient struct {
	GeminiClient *genai.Client
}

func NewLLMClient(geminiClient *genai.Client) *LLMClient {
	return &LLMClient{
		GeminiClient: geminiClient,
	}
}

const defaultModel = "gemini-2.5-pro"

// GenerateOptimizationReport sends the enriched diagnostic contexts to the
// model and writes the returned markdown report to the configured output
// file.
func (c *LLMClient) GenerateOptimizationReport(ctx context.Context, contexts []DiagnosticContext) error {
	cfg, _ := GetConfig()
	modelName := cfg.GeminiModel
	if modelName == "" {
		modelName = defaultModel
	}
	prompt, err := GetOptimizationPrompt(contexts)
	if err != nil {
		Logger.Error(err)
		return err
	}
	var parts []*genai.Part
	parts = append(parts, genai.NewPartFromText("\n\n"))
	parts = append(parts, genai.NewPartFromText(prompt))
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, "user"),
	}
	response, err := c.GeminiClient.Models.GenerateContent(ctx, modelName, contents, nil)
	if err != nil {
		Logger.Error(err)
		return err
	}
	resFile, err := os.Create(cfg.ReportOutputFile)
	if err != nil {
		Logger.Fatalf("Failed to create result file: %v", err)
	}
	defer resFile.Close()
	if _, err := resFile.Write([]byte(response.Text())); err != nil {
		Logger.Fatalf("Failed to write results: %v", err)
	}
	Logger.WithFields(logrus.Fields{"outputFile": resFile.Name()}).Info("Optimization report written to the filesystem")
	return nil
}
