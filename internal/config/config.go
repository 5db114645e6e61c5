// Package config defines and loads the full runtime configuration surface:
// environment variables first, with an optional YAML overlay for the rest.
package config

import "time"

// Config is the fully resolved runtime configuration for a VICW deployment.
type Config struct {
	// HTTP / process
	ListenAddr string
	LogPath    string
	LogLevel   string

	// Pressure control
	TMax         int
	ThetaTrigger float64
	ThetaTarget  float64
	ThetaResume  float64

	// Offload queue
	QueueMax   int
	QueueKind  string // "memory" | "redis" | "kafka"
	IdleSleep  time.Duration
	RedisAddr  string
	KafkaAddrs []string
	KafkaTopic string

	// Summarization
	SummaryLeadSentences int
	SummaryTailSentences int
	SummaryMaxTokens     int

	// Embedding
	EmbeddingDim int

	// Retrieval
	SemanticK   int
	RelationalK int
	SimMin      float64

	// Echo guard
	EchoRingSize   int
	EchoSimMax     float64
	EchoMaxRetries int
	StripRAGOnFinalRetry bool

	// State machine
	StateTrackingEnabled bool
	StateCaps            StateCaps
	BoredomThreshold      int
	BoredomEnabled        bool
	RecentlyCompletedCap  int

	// LLM client
	LLMProvider    string
	LLMModel       string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMTimeout     time.Duration
	LLMMaxRetries  int
	LLMTemperature float64

	// Backends
	ChunkStoreKind  string // "memory" | "postgres" | "s3"
	VectorKind      string // "memory" | "qdrant"
	GraphKind       string // "memory" | "postgres"
	PostgresDSN     string
	QdrantDSN       string
	QdrantCollection string
	S3Bucket        string

	// Analytics (optional)
	ClickHouseDSN string

	BackendTimeout time.Duration
}

// StateCaps are the per-type hard caps applied when injecting active state
// into the prompt.
type StateCaps struct {
	Goal     int
	Task     int
	Decision int
	Fact     int
}

// Defaults returns the configuration with every knob set to a sane default,
// so a deployment can start with nothing but a .env override.
func Defaults() Config {
	return Config{
		ListenAddr: ":8089",
		LogLevel:   "info",

		TMax:         8000,
		ThetaTrigger: 0.80,
		ThetaTarget:  0.60,
		ThetaResume:  0.70,

		QueueMax:  100,
		QueueKind: "memory",
		IdleSleep: 100 * time.Millisecond,

		SummaryLeadSentences: 2,
		SummaryTailSentences: 1,
		SummaryMaxTokens:     256,

		EmbeddingDim: 384,

		SemanticK:   2,
		RelationalK: 5,
		SimMin:      0.4,

		EchoRingSize:         10,
		EchoSimMax:           0.95,
		EchoMaxRetries:       3,
		StripRAGOnFinalRetry: true,

		StateTrackingEnabled: true,
		StateCaps:            StateCaps{Goal: 2, Task: 3, Decision: 2, Fact: 3},
		BoredomThreshold:     5,
		BoredomEnabled:       true,
		RecentlyCompletedCap: 3,

		LLMProvider:    "openai",
		LLMTimeout:     60 * time.Second,
		LLMMaxRetries:  2,
		LLMTemperature: 0.7,

		ChunkStoreKind:   "memory",
		VectorKind:       "memory",
		GraphKind:        "memory",
		QdrantCollection: "vicw_chunks",

		BackendTimeout: 10 * time.Second,
	}
}
