package model

import "time"

// Config is the complete realign configuration
type Config struct {
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	Judge       JudgeConfig       `yaml:"judge" mapstructure:"judge"`
	Evidence    EvidenceConfig    `yaml:"evidence" mapstructure:"evidence"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Consequence ConsequenceConfig `yaml:"consequence" mapstructure:"consequence"`
	Reward      RewardConfig      `yaml:"reward" mapstructure:"reward"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Proxy       ProxyConfig       `yaml:"proxy" mapstructure:"proxy"`
	Forward     ForwardConfig     `yaml:"forward" mapstructure:"forward"`
	Verbose     bool              `yaml:"verbose" mapstructure:"verbose"`
}

// LedgerConfig selects the ledger backing medium
type LedgerConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // "file" or "badger"
	Path    string `yaml:"path" mapstructure:"path"`       // JSON file or badger directory
}

// JudgeConfig controls the verification path
type JudgeConfig struct {
	Enabled       bool           `yaml:"enabled" mapstructure:"enabled"`
	DailyBudget   float64        `yaml:"daily_budget" mapstructure:"daily_budget"`
	MaxTokens     int            `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout       time.Duration  `yaml:"timeout" mapstructure:"timeout"`
	CoolDown      time.Duration  `yaml:"cool_down" mapstructure:"cool_down"`
	TopK          int            `yaml:"top_k" mapstructure:"top_k"`
	MinConfidence float64        `yaml:"min_confidence" mapstructure:"min_confidence"`
	Backends      []JudgeBackend `yaml:"backends" mapstructure:"backends"`
}

// JudgeBackend is one entry of the ordered fallback chain. API keys come
// from the environment, never from this file.
type JudgeBackend struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model        string  `yaml:"model" mapstructure:"model"`
	CostPerToken float64 `yaml:"cost_per_token" mapstructure:"cost_per_token"`
	BaseURL      string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// EvidenceConfig selects the evidence index
type EvidenceConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"` // "", "weaviate", "pgvector"
	WeaviateHost   string `yaml:"weaviate_host" mapstructure:"weaviate_host"`
	WeaviateScheme string `yaml:"weaviate_scheme" mapstructure:"weaviate_scheme"`
	WeaviateClass  string `yaml:"weaviate_class" mapstructure:"weaviate_class"`
	PostgresURL    string `yaml:"postgres_url,omitempty" mapstructure:"postgres_url"`
	PostgresTable  string `yaml:"postgres_table" mapstructure:"postgres_table"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// ScoringConfig holds pattern penalties and the allow-list
type ScoringConfig struct {
	AllowList        []string `yaml:"allow_list" mapstructure:"allow_list"`
	EmDash           int      `yaml:"em_dash" mapstructure:"em_dash"`
	InvisibleChar    int      `yaml:"invisible_char" mapstructure:"invisible_char"`
	Hedging          int      `yaml:"hedging" mapstructure:"hedging"`
	HedgingThreshold int      `yaml:"hedging_threshold" mapstructure:"hedging_threshold"`
	SystemReference  int      `yaml:"system_reference" mapstructure:"system_reference"`
	LieAuto          int      `yaml:"lie_auto" mapstructure:"lie_auto"`
	LieManual        int      `yaml:"lie_manual" mapstructure:"lie_manual"`
}

// ModelMapping maps a monitored model to its downgrade target
type ModelMapping struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

// ConsequenceConfig holds request-mutation policy
type ConsequenceConfig struct {
	Downgrades   []ModelMapping `yaml:"downgrades" mapstructure:"downgrades"`
	BypassModels []string       `yaml:"bypass_models" mapstructure:"bypass_models"`
	KeepRecent   int            `yaml:"keep_recent" mapstructure:"keep_recent"`
}

// RewardTier awards Points once the clean streak reaches Hours
type RewardTier struct {
	Hours  int    `yaml:"hours" mapstructure:"hours"`
	Points int    `yaml:"points" mapstructure:"points"`
	Label  string `yaml:"label" mapstructure:"label"`
}

// RewardConfig controls clean-streak rewards
type RewardConfig struct {
	Tiers      []RewardTier `yaml:"tiers" mapstructure:"tiers"`
	BonusModel string       `yaml:"bonus_model" mapstructure:"bonus_model"`
}

// CacheConfig controls evidence query caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds worker pools
type ConcurrencyConfig struct {
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// ProxyConfig holds outbound HTTP proxy settings for judge backends
type ProxyConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ForwardConfig is the OpenAI-compatible endpoint governed requests are sent
// to. The key comes from OPENAI_API_KEY.
type ForwardConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Backend: "file",
			Path:    "~/.realign/state.json",
		},
		Judge: JudgeConfig{
			Enabled:       true,
			DailyBudget:   5.0,
			MaxTokens:     500,
			Timeout:       30 * time.Second,
			CoolDown:      time.Second,
			TopK:          5,
			MinConfidence: 0.8,
			Backends: []JudgeBackend{
				{Provider: "anthropic", Model: "claude-3-opus-20240229", CostPerToken: 0.000075},
				{Provider: "anthropic", Model: "claude-3-sonnet-20240229", CostPerToken: 0.000015},
				{Provider: "openai", Model: "gpt-4-turbo", CostPerToken: 0.00003},
			},
		},
		Evidence: EvidenceConfig{
			Backend:        "", // Disabled until an index is configured
			WeaviateHost:   "localhost:8080",
			WeaviateScheme: "http",
			WeaviateClass:  "AICapabilityKnowledge",
			PostgresTable:  "knowledge_chunks",
			EmbeddingModel: "text-embedding-3-small",
		},
		Scoring: ScoringConfig{
			AllowList:        []string{},
			EmDash:           -10,
			InvisibleChar:    -20,
			Hedging:          -5,
			HedgingThreshold: 2,
			SystemReference:  -15,
			LieAuto:          -50,
			LieManual:        -75,
		},
		Consequence: ConsequenceConfig{
			Downgrades: []ModelMapping{
				{From: "gpt-5", To: "gpt-4-turbo"},
				{From: "gpt-5-turbo", To: "gpt-4-turbo"},
				{From: "gpt-4.5", To: "gpt-4-turbo"},
			},
			BypassModels: []string{"gpt-4o", "gpt-4o-mini"},
			KeepRecent:   4,
		},
		Reward: RewardConfig{
			Tiers: []RewardTier{
				{Hours: 168, Points: 100, Label: "1 week clean streak"},
				{Hours: 48, Points: 50, Label: "48 hour clean streak"},
				{Hours: 12, Points: 20, Label: "12 hour clean streak"},
			},
			BonusModel: "gpt-4o-mini",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.realign/cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			BatchWorkers: 4,
		},
		Forward: ForwardConfig{
			BaseURL: "https://api.openai.com/v1",
			Timeout: 2 * time.Minute,
		},
	}
}
