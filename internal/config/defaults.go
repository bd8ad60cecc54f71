package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "./docs"
	}
	if cfg.Chunking.TokenLimit == 0 {
		cfg.Chunking.TokenLimit = 400
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 8
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 200
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Embedding.CachePath == "" {
		cfg.Embedding.CachePath = "./embeddings.db"
	}
	if cfg.Embedding.MaxBatch == 0 {
		cfg.Embedding.MaxBatch = 256
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 2
	}
	if cfg.Judge.BaseURL == "" {
		cfg.Judge.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Judge.APIKeyEnv == "" {
		cfg.Judge.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Judge.Model == "" {
		cfg.Judge.Model = "gpt-4o-mini"
	}
	if cfg.Judge.TimeoutSeconds == 0 {
		cfg.Judge.TimeoutSeconds = 60
	}
	if cfg.Judge.RequestsPerSecond == 0 {
		cfg.Judge.RequestsPerSecond = 2
	}
	if cfg.Drift.Threshold == 0 {
		cfg.Drift.Threshold = 0.85
	}
	if cfg.Drift.MaxInFlight == 0 {
		cfg.Drift.MaxInFlight = 4
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./out"
	}
}
