package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout. Pointer fields distinguish "absent"
// from zero values.
type fileConfig struct {
	Ollama struct {
		BaseURL    *string `yaml:"base_url"`
		EmbedModel *string `yaml:"embed_model"`
	} `yaml:"ollama"`

	Embeddings struct {
		Provider   *string `yaml:"provider"`
		Dimensions *int    `yaml:"dimensions"`
		BaseURL    *string `yaml:"base_url"`
		Model      *string `yaml:"model"`
		Cache      struct {
			Enabled *bool    `yaml:"enabled"`
			Addrs   []string `yaml:"addrs"`
			DB      *int     `yaml:"db"`
			TTL     *string  `yaml:"ttl"`
		} `yaml:"cache"`
	} `yaml:"embeddings"`

	Retrieval struct {
		TopKSemantic   *int    `yaml:"top_k_semantic"`
		TopKBM25       *int    `yaml:"top_k_bm25"`
		TopKReranked   *int    `yaml:"top_k_reranked"`
		EnableReranker *bool   `yaml:"enable_reranker"`
		RerankerModel  *string `yaml:"reranker_model"`
		VectorTimeout  *string `yaml:"vector_timeout"`
		RRFK           *int    `yaml:"rrf_k"`
		FusionIdentity *string `yaml:"fusion_identity"`
		IndexWorkers   *int    `yaml:"index_workers"`
	} `yaml:"retrieval"`

	QueryAnalysis struct {
		ExtractCountries   *bool `yaml:"extract_countries"`
		ExtractPhases      *bool `yaml:"extract_phases"`
		ExtractYears       *bool `yaml:"extract_years"`
		ExtractSurveyTypes *bool `yaml:"extract_survey_types"`
	} `yaml:"query_analysis"`

	Vector struct {
		Backend    *string `yaml:"backend"`
		Collection *string `yaml:"collection"`
		QdrantURL  *string `yaml:"qdrant_url"`
	} `yaml:"vector"`

	Reranker struct {
		URL     *string `yaml:"url"`
		Timeout *string `yaml:"timeout"`
	} `yaml:"reranker"`

	Logging struct {
		Level      *string `yaml:"level"`
		LogQueries *bool   `yaml:"log_queries"`
	} `yaml:"logging"`

	Database struct {
		URL *string `yaml:"url"`
	} `yaml:"database"`

	QueryLog struct {
		NATSURL     *string `yaml:"nats_url"`
		NATSSubject *string `yaml:"nats_subject"`
	} `yaml:"query_log"`

	API struct {
		Port           *string  `yaml:"port"`
		MaxConnections *int     `yaml:"max_connections"`
		RateLimitRPS   *float64 `yaml:"rate_limit_rps"`
		RateLimitBurst *int     `yaml:"rate_limit_burst"`
		MaxInFlight    *int     `yaml:"max_in_flight"`
		QueueWait      *string  `yaml:"queue_wait"`
		ValidateSchema *bool    `yaml:"validate_openapi"`
	} `yaml:"api"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.OllamaURL, fc.Ollama.BaseURL)
	setString(&cfg.OllamaEmbedModel, fc.Ollama.EmbedModel)

	setString(&cfg.EmbeddingProvider, fc.Embeddings.Provider)
	setInt(&cfg.EmbeddingDimensions, fc.Embeddings.Dimensions)
	setString(&cfg.OpenAIBaseURL, fc.Embeddings.BaseURL)
	setString(&cfg.OpenAIEmbedModel, fc.Embeddings.Model)
	setBool(&cfg.EmbedCacheEnabled, fc.Embeddings.Cache.Enabled)
	if len(fc.Embeddings.Cache.Addrs) > 0 {
		cfg.RedisAddrs = fc.Embeddings.Cache.Addrs
	}
	setInt(&cfg.RedisDB, fc.Embeddings.Cache.DB)
	if err := setDuration(&cfg.EmbedCacheTTL, fc.Embeddings.Cache.TTL); err != nil {
		return fmt.Errorf("embeddings.cache.ttl: %w", err)
	}

	setInt(&cfg.SemanticTopK, fc.Retrieval.TopKSemantic)
	setInt(&cfg.LexicalTopK, fc.Retrieval.TopKBM25)
	setInt(&cfg.FinalTopK, fc.Retrieval.TopKReranked)
	setBool(&cfg.RerankEnabled, fc.Retrieval.EnableReranker)
	setString(&cfg.RerankerModel, fc.Retrieval.RerankerModel)
	if err := setDuration(&cfg.VectorTimeout, fc.Retrieval.VectorTimeout); err != nil {
		return fmt.Errorf("retrieval.vector_timeout: %w", err)
	}
	setInt(&cfg.FusionRRFK, fc.Retrieval.RRFK)
	setString(&cfg.FusionIdentity, fc.Retrieval.FusionIdentity)
	setInt(&cfg.IndexPoolSize, fc.Retrieval.IndexWorkers)

	setBool(&cfg.ExtractCountries, fc.QueryAnalysis.ExtractCountries)
	setBool(&cfg.ExtractPhases, fc.QueryAnalysis.ExtractPhases)
	setBool(&cfg.ExtractYears, fc.QueryAnalysis.ExtractYears)
	setBool(&cfg.ExtractSurveyTypes, fc.QueryAnalysis.ExtractSurveyTypes)

	setString(&cfg.VectorBackend, fc.Vector.Backend)
	setString(&cfg.VectorCollection, fc.Vector.Collection)
	setString(&cfg.QdrantURL, fc.Vector.QdrantURL)

	setString(&cfg.RerankerURL, fc.Reranker.URL)
	if err := setDuration(&cfg.RerankTimeout, fc.Reranker.Timeout); err != nil {
		return fmt.Errorf("reranker.timeout: %w", err)
	}

	setString(&cfg.LogLevel, fc.Logging.Level)
	setBool(&cfg.LogQueries, fc.Logging.LogQueries)

	setString(&cfg.DatabaseURL, fc.Database.URL)

	setString(&cfg.NATSURL, fc.QueryLog.NATSURL)
	setString(&cfg.NATSSubject, fc.QueryLog.NATSSubject)

	setString(&cfg.APIPort, fc.API.Port)
	setInt(&cfg.APIMaxConnections, fc.API.MaxConnections)
	if fc.API.RateLimitRPS != nil {
		cfg.APIRateLimitRPS = *fc.API.RateLimitRPS
	}
	setInt(&cfg.APIRateLimitBurst, fc.API.RateLimitBurst)
	setInt(&cfg.APIMaxInFlight, fc.API.MaxInFlight)
	setBool(&cfg.APIValidateOpenAPI, fc.API.ValidateSchema)
	if err := setDuration(&cfg.APIQueueWait, fc.API.QueueWait); err != nil {
		return fmt.Errorf("api.queue_wait: %w", err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
