package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.EmbeddingCacheSize == 0 {
		cfg.LLM.EmbeddingCacheSize = 1000
	}
	applyGenerationDefaults(&cfg.LLM.Chat, 0.2, 1500)
	applyGenerationDefaults(&cfg.LLM.Parse, 0.0, 500)
	applyGenerationDefaults(&cfg.LLM.Condense, 0.0, 150)
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.InitialBackoff == 0 {
		cfg.LLM.InitialBackoff = time.Second
	}
	if cfg.LLM.BackoffMultiplier == 0 {
		cfg.LLM.BackoffMultiplier = 2
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	if cfg.Retrieval.TopKProjects == 0 {
		cfg.Retrieval.TopKProjects = 10
	}
	if cfg.Retrieval.TopKCaseStudies == 0 {
		cfg.Retrieval.TopKCaseStudies = 5
	}
	if cfg.Retrieval.ProjectTechWeight == 0 && cfg.Retrieval.ProjectServiceWeight == 0 {
		cfg.Retrieval.ProjectTechWeight = 0.8
		cfg.Retrieval.ProjectServiceWeight = 0.2
	}
	// Set 0 to disable; an absent key gets the default.
	if cfg.Retrieval.ProjectScoreThreshold == nil {
		t := 0.6
		cfg.Retrieval.ProjectScoreThreshold = &t
	}

	if cfg.Workflow.MaxAttempts == nil {
		n := 2
		cfg.Workflow.MaxAttempts = &n
	}

	if cfg.Session.Type == "" {
		cfg.Session.Type = "memory"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = time.Hour
	}
	if cfg.Session.DatabasePath == "" {
		cfg.Session.DatabasePath = "/usr/local/var/kotae/data/db/sessions.db"
	}

	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "memory"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = 1536
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/records.db"
	}

	if cfg.Data.Directory == "" {
		cfg.Data.Directory = "/usr/local/var/kotae/data"
	}
	if cfg.Data.ProjectsFile == "" {
		cfg.Data.ProjectsFile = "projects.json"
	}
	if cfg.Data.CaseStudiesFile == "" {
		cfg.Data.CaseStudiesFile = "case_studies.json"
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "localhost:4318"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "kotae"
	}
}

func applyGenerationDefaults(g *GenerationConfig, temperature float64, maxTokens int) {
	if g.Model == "" {
		g.Model = "gpt-4o-mini"
	}
	if g.Temperature == nil {
		t := temperature
		g.Temperature = &t
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = maxTokens
	}
	if g.TopP == 0 {
		g.TopP = 1.0
	}
}
