package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally layered on
// top of a .env file) and an optional YAML overlay: defaults, then YAML,
// then explicit env vars, each layer overriding the last.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if v := strings.TrimSpace(os.Getenv("VICW_CONFIG_FILE")); v != "" {
		if err := applyYAMLFile(&cfg, v); err != nil {
			return Config{}, fmt.Errorf("load yaml overlay: %w", err)
		}
	}

	cfg.ListenAddr = firstNonEmpty(os.Getenv("VICW_LISTEN_ADDR"), cfg.ListenAddr)
	cfg.LogPath = strings.TrimSpace(os.Getenv("VICW_LOG_PATH"))
	cfg.LogLevel = firstNonEmpty(os.Getenv("VICW_LOG_LEVEL"), cfg.LogLevel)

	applyInt(os.Getenv("VICW_T_MAX"), &cfg.TMax)
	applyFloat(os.Getenv("VICW_THETA_TRIGGER"), &cfg.ThetaTrigger)
	applyFloat(os.Getenv("VICW_THETA_TARGET"), &cfg.ThetaTarget)
	applyFloat(os.Getenv("VICW_THETA_RESUME"), &cfg.ThetaResume)

	applyInt(os.Getenv("VICW_QUEUE_MAX"), &cfg.QueueMax)
	cfg.QueueKind = firstNonEmpty(os.Getenv("VICW_QUEUE_KIND"), cfg.QueueKind)
	applyDuration(os.Getenv("VICW_IDLE_SLEEP_MS"), &cfg.IdleSleep, time.Millisecond)
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("VICW_REDIS_ADDR"))
	if v := strings.TrimSpace(os.Getenv("VICW_KAFKA_ADDRS")); v != "" {
		cfg.KafkaAddrs = strings.Split(v, ",")
	}
	cfg.KafkaTopic = firstNonEmpty(os.Getenv("VICW_KAFKA_TOPIC"), "vicw-offload")

	applyInt(os.Getenv("VICW_SUMMARY_LEAD_SENTENCES"), &cfg.SummaryLeadSentences)
	applyInt(os.Getenv("VICW_SUMMARY_TAIL_SENTENCES"), &cfg.SummaryTailSentences)
	applyInt(os.Getenv("VICW_SUMMARY_MAX_TOKENS"), &cfg.SummaryMaxTokens)

	applyInt(os.Getenv("VICW_EMBEDDING_DIM"), &cfg.EmbeddingDim)

	applyInt(os.Getenv("VICW_K_SEM"), &cfg.SemanticK)
	applyInt(os.Getenv("VICW_K_REL"), &cfg.RelationalK)
	applyFloat(os.Getenv("VICW_SIGMA_MIN"), &cfg.SimMin)

	applyInt(os.Getenv("VICW_ECHO_RING_SIZE"), &cfg.EchoRingSize)
	applyFloat(os.Getenv("VICW_SIGMA_ECHO"), &cfg.EchoSimMax)
	applyInt(os.Getenv("VICW_R_MAX"), &cfg.EchoMaxRetries)
	applyBool(os.Getenv("VICW_STRIP_RAG_ON_FINAL_RETRY"), &cfg.StripRAGOnFinalRetry)

	applyBool(os.Getenv("VICW_STATE_TRACKING_ENABLED"), &cfg.StateTrackingEnabled)
	applyInt(os.Getenv("VICW_STATE_CAP_GOAL"), &cfg.StateCaps.Goal)
	applyInt(os.Getenv("VICW_STATE_CAP_TASK"), &cfg.StateCaps.Task)
	applyInt(os.Getenv("VICW_STATE_CAP_DECISION"), &cfg.StateCaps.Decision)
	applyInt(os.Getenv("VICW_STATE_CAP_FACT"), &cfg.StateCaps.Fact)
	applyInt(os.Getenv("VICW_BOREDOM_THRESHOLD"), &cfg.BoredomThreshold)
	applyBool(os.Getenv("VICW_BOREDOM_ENABLED"), &cfg.BoredomEnabled)
	applyInt(os.Getenv("VICW_K_DONE"), &cfg.RecentlyCompletedCap)

	cfg.LLMProvider = firstNonEmpty(os.Getenv("VICW_LLM_PROVIDER"), cfg.LLMProvider)
	cfg.LLMModel = strings.TrimSpace(os.Getenv("VICW_LLM_MODEL"))
	cfg.LLMBaseURL = strings.TrimSpace(os.Getenv("VICW_LLM_BASE_URL"))
	cfg.LLMAPIKey = strings.TrimSpace(os.Getenv("VICW_LLM_API_KEY"))
	applyDuration(os.Getenv("VICW_LLM_TIMEOUT_SECONDS"), &cfg.LLMTimeout, time.Second)
	applyInt(os.Getenv("VICW_LLM_MAX_RETRIES"), &cfg.LLMMaxRetries)
	applyFloat(os.Getenv("VICW_LLM_TEMPERATURE"), &cfg.LLMTemperature)

	cfg.ChunkStoreKind = firstNonEmpty(os.Getenv("VICW_CHUNKSTORE_KIND"), cfg.ChunkStoreKind)
	cfg.VectorKind = firstNonEmpty(os.Getenv("VICW_VECTOR_KIND"), cfg.VectorKind)
	cfg.GraphKind = firstNonEmpty(os.Getenv("VICW_GRAPH_KIND"), cfg.GraphKind)
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("VICW_POSTGRES_DSN"))
	cfg.QdrantDSN = strings.TrimSpace(os.Getenv("VICW_QDRANT_DSN"))
	cfg.QdrantCollection = firstNonEmpty(os.Getenv("VICW_QDRANT_COLLECTION"), cfg.QdrantCollection)
	cfg.S3Bucket = strings.TrimSpace(os.Getenv("VICW_S3_BUCKET"))
	cfg.ClickHouseDSN = strings.TrimSpace(os.Getenv("VICW_CLICKHOUSE_DSN"))

	applyDuration(os.Getenv("VICW_BACKEND_TIMEOUT_SECONDS"), &cfg.BackendTimeout, time.Second)

	return cfg, nil
}

// applyYAMLFile overlays the YAML-configurable knobs (state caps and queue
// kind) from a file. Env vars applied after this call still
// take precedence: env wins over YAML.
func applyYAMLFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var overlay struct {
		StateCaps StateCaps `yaml:"stateCaps"`
		QueueKind string    `yaml:"queueKind"`
	}
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if overlay.StateCaps != (StateCaps{}) {
		cfg.StateCaps = overlay.StateCaps
	}
	if overlay.QueueKind != "" {
		cfg.QueueKind = overlay.QueueKind
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

func applyInt(raw string, dst *int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*dst = n
	}
}

func applyFloat(raw string, dst *float64) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*dst = f
	}
}

func applyBool(raw string, dst *bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	*dst = strings.EqualFold(raw, "true") || raw == "1" || strings.EqualFold(raw, "yes")
}

func applyDuration(raw string, dst *time.Duration, unit time.Duration) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(n) * unit
	}
}
