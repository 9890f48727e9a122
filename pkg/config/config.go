package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Milvus    MilvusConfig
	Neo4j     Neo4jConfig
	Generator GeneratorConfig
	Retrieval RetrievalConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	RequestTimeout int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type EmbeddingConfig struct {
	Provider   string
	APIKey     string
	Model      string
	Dimension  int
	TimeoutSec int
}

type IndexConfig struct {
	Backend string
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type GeneratorConfig struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

type RetrievalConfig struct {
	TopK            int
	OverfetchFactor int
	PerDocumentCap  int
}

type IngestionConfig struct {
	SegmentSize    int
	SegmentOverlap int
	MaxFileSize    int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/resilience2relief")

	viper.SetEnvPrefix("R2R")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 20971520)
	viper.SetDefault("server.requestTimeout", 60)

	viper.SetDefault("sqlite.path", "./data/r2r.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 256)
	viper.SetDefault("embedding.timeoutSec", 15)

	viper.SetDefault("index.backend", "memory")

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "recovery_segments")

	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("generator.provider", "template")
	viper.SetDefault("generator.model", "gpt-4")
	viper.SetDefault("generator.temperature", 0.3)
	viper.SetDefault("generator.maxTokens", 512)

	viper.SetDefault("retrieval.topK", 8)
	viper.SetDefault("retrieval.overfetchFactor", 3)
	viper.SetDefault("retrieval.perDocumentCap", 2)

	viper.SetDefault("ingestion.segmentSize", 1000)
	viper.SetDefault("ingestion.segmentOverlap", 200)
	viper.SetDefault("ingestion.maxFileSize", 10485760)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
