package main

import (
	"encoding/json"
	"os"
	"sync"
)

type Config struct {
	MongoURI           string   `json:"mongoUri"`
	DatabaseName       string   `json:"databaseName"`
	MinDurationMillis  int64    `json:"minDurationMillis"`
	ExcludedOpTypes    []string `json:"excludedOpTypes"`
	TimeWindow         string   `json:"timeWindow"`
	SchemaSampleSize   int64    `json:"schemaSampleSize"`
	NumAnalyzedQueries int      `json:"numAnalyzedQueries"`
	LogSource          string   `json:"logSource"`
	AtlasPublicKey     string   `json:"atlasPublicKey"`
	AtlasPrivateKey    string   `json:"atlasPrivateKey"`
	ProjectId          string   `json:"projectId"`
	ClusterName        string   `json:"clusterName"`
	GeminiAPIKey       string   `json:"GeminiAPIKey"`
	GeminiModel        string   `json:"geminiModel"`
	ReportOutputFile   string   `json:"reportOutputFile"`
	LogLevel           string   `json:"logLevel"`
}

var (
	cfg           *Config
	once          sync.Once
	loadConfigErr error
)

func GetConfig() (*Config, error) {
	once.Do(func() {
		configPath := os.Getenv("QUERY_OPTIMIZER_CONFIG_FILE")
		if configPath == "" {
			configPath = "./config.json"
		}

		var fileContents []byte
		fileContents, loadConfigErr = os.ReadFile(configPath)
		if loadConfigErr != nil {
			return
		}

		var tempCfg Config
		loadConfigErr = json.Unmarshal(fileContents, &tempCfg)
		if loadConfigErr != nil {
			return
		}

		if tempCfg.MinDurationMillis == 0 {
			tempCfg.MinDurationMillis = 100
		}
		if tempCfg.SchemaSampleSize == 0 {
			tempCfg.SchemaSampleSize = 100
		}

		cfg = &tempCfg
	})

	return cfg, loadConfigErr
}
