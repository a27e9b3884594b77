package model

import "time"

// Config holds every tunable of the analytics engine and its CLI surface.
// Thresholds are heuristics; the defaults below are documented starting points.
type Config struct {
	Reconcile   ReconcileConfig   `yaml:"reconcile" mapstructure:"reconcile"`
	Graph       GraphConfig       `yaml:"graph" mapstructure:"graph"`
	Detect      DetectConfig      `yaml:"detect" mapstructure:"detect"`
	Anomaly     AnomalyConfig     `yaml:"anomaly" mapstructure:"anomaly"`
	Score       ScoreConfig       `yaml:"score" mapstructure:"score"`
	Validation  ValidationConfig  `yaml:"validation" mapstructure:"validation"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Watch       WatchConfig       `yaml:"watch" mapstructure:"watch"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Neo4j       Neo4jConfig       `yaml:"neo4j" mapstructure:"neo4j"`
}

// ReconcileConfig tunes the three-way filing reconciliation
type ReconcileConfig struct {
	ValueTolerance    float64 `yaml:"value_tolerance" mapstructure:"value_tolerance"`         // Relative; above this is VALUE_MISMATCH
	CriticalValueDiff float64 `yaml:"critical_value_diff" mapstructure:"critical_value_diff"` // Relative; above this VALUE_MISMATCH is CRITICAL
	TaxTolerance      float64 `yaml:"tax_tolerance" mapstructure:"tax_tolerance"`             // Relative; above this is TAX_MISMATCH
	ITCTolerance      float64 `yaml:"itc_tolerance" mapstructure:"itc_tolerance"`             // Claimed may exceed eligible by this fraction
	ITCMatchPeriod    bool    `yaml:"itc_match_period" mapstructure:"itc_match_period"`       // Only count inward invoices dated in the period
}

// GraphConfig tunes graph-wide computations
type GraphConfig struct {
	PageRank PageRankConfig `yaml:"pagerank" mapstructure:"pagerank"`
}

// PageRankConfig tunes the power iteration
type PageRankConfig struct {
	Damping       float64 `yaml:"damping" mapstructure:"damping"`
	Tolerance     float64 `yaml:"tolerance" mapstructure:"tolerance"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// DetectConfig tunes the four fraud pattern detectors
type DetectConfig struct {
	Circular   CircularConfig   `yaml:"circular" mapstructure:"circular"`
	Shell      ShellConfig      `yaml:"shell" mapstructure:"shell"`
	Reciprocal ReciprocalConfig `yaml:"reciprocal" mapstructure:"reciprocal"`
	Fake       FakeConfig       `yaml:"fake" mapstructure:"fake"`
}

// CircularConfig bounds cycle enumeration
type CircularConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
	MaxCycles int `yaml:"max_cycles" mapstructure:"max_cycles"`
}

// ShellConfig sets the low-importance/high-volume cutoffs
type ShellConfig struct {
	PageRankThreshold        float64 `yaml:"pagerank_threshold" mapstructure:"pagerank_threshold"`
	VolumeThreshold          float64 `yaml:"volume_threshold" mapstructure:"volume_threshold"`
	CriticalVolumeMultiplier float64 `yaml:"critical_volume_multiplier" mapstructure:"critical_volume_multiplier"`
}

// ReciprocalConfig sets when round-tripping counts as near-equal
type ReciprocalConfig struct {
	Tolerance float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// FakeConfig sets round-number and repetition rules
type FakeConfig struct {
	RoundUnit       float64 `yaml:"round_unit" mapstructure:"round_unit"`
	MinRoundValue   float64 `yaml:"min_round_value" mapstructure:"min_round_value"`
	RepeatThreshold int     `yaml:"repeat_threshold" mapstructure:"repeat_threshold"`
	MinRepeatDates  int     `yaml:"min_repeat_dates" mapstructure:"min_repeat_dates"`
}

// AnomalyConfig tunes the statistical detectors
type AnomalyConfig struct {
	InvoiceZThreshold float64 `yaml:"invoice_z_threshold" mapstructure:"invoice_z_threshold"`
	ITCZThreshold     float64 `yaml:"itc_z_threshold" mapstructure:"itc_z_threshold"`
	IQRMultiplier     float64 `yaml:"iqr_multiplier" mapstructure:"iqr_multiplier"`
	MinVendors        int     `yaml:"min_vendors" mapstructure:"min_vendors"`
	MinSamples        int     `yaml:"min_samples" mapstructure:"min_samples"`
}

// ScoreConfig holds the risk model weights and level cut-offs
type ScoreConfig struct {
	Weights            ScoreWeights `yaml:"weights" mapstructure:"weights"`
	CriticalAbove      float64      `yaml:"critical_above" mapstructure:"critical_above"`
	HighAbove          float64      `yaml:"high_above" mapstructure:"high_above"`
	MediumAbove        float64      `yaml:"medium_above" mapstructure:"medium_above"`
	KnownFraudFloor    float64      `yaml:"known_fraud_floor" mapstructure:"known_fraud_floor"`
	MismatchSaturation int          `yaml:"mismatch_saturation" mapstructure:"mismatch_saturation"`
	LeaderboardSize    int          `yaml:"leaderboard_size" mapstructure:"leaderboard_size"`
}

// ScoreWeights are the linear weights of normalized risk components
type ScoreWeights struct {
	ITCRatio    float64 `yaml:"itc_ratio" mapstructure:"itc_ratio"`
	ZeroCash    float64 `yaml:"zero_cash" mapstructure:"zero_cash"`
	ShellSignal float64 `yaml:"shell_signal" mapstructure:"shell_signal"`
	Mismatch    float64 `yaml:"mismatch" mapstructure:"mismatch"`
	Overclaim   float64 `yaml:"overclaim" mapstructure:"overclaim"`
	Degree      float64 `yaml:"degree" mapstructure:"degree"`
	Volume      float64 `yaml:"volume" mapstructure:"volume"`
}

// ValidationConfig controls tax ID checks while decoding
type ValidationConfig struct {
	IDMode string `yaml:"id_mode" mapstructure:"id_mode"` // off, length, checksum
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // Analysis stage workers
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"` // Datasets built in parallel by `batch`
}

// WatchConfig tunes rebuild-on-change
type WatchConfig struct {
	Debounce          time.Duration `yaml:"debounce" mapstructure:"debounce"`
	RebuildsPerMinute float64       `yaml:"rebuilds_per_minute" mapstructure:"rebuilds_per_minute"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls the rendered-section cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	Indent  bool   `yaml:"indent" mapstructure:"indent"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Environment string `yaml:"environment" mapstructure:"environment"` // production or development
}

// MetricsConfig exposes Prometheus metrics in watch mode
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"` // Empty disables the endpoint
}

// Neo4jConfig configures the optional graph export
type Neo4jConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	URI       string `yaml:"uri" mapstructure:"uri"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password,omitempty" mapstructure:"password"`
	Database  string `yaml:"database" mapstructure:"database"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() *Config {
	return &Config{
		Reconcile: ReconcileConfig{
			ValueTolerance:    0.01,
			CriticalValueDiff: 0.10,
			TaxTolerance:      0.01,
			ITCTolerance:      0.01,
			ITCMatchPeriod:    false,
		},
		Graph: GraphConfig{
			PageRank: PageRankConfig{
				Damping:       0.85,
				Tolerance:     1e-6,
				MaxIterations: 100,
			},
		},
		Detect: DetectConfig{
			Circular: CircularConfig{
				MinLength: 3,
				MaxLength: 8,
				MaxCycles: 500,
			},
			Shell: ShellConfig{
				PageRankThreshold:        0.01,
				VolumeThreshold:          10_000_000,
				CriticalVolumeMultiplier: 2,
			},
			Reciprocal: ReciprocalConfig{
				Tolerance: 0.05,
			},
			Fake: FakeConfig{
				RoundUnit:       100_000,
				MinRoundValue:   500_000,
				RepeatThreshold: 3,
				MinRepeatDates:  2,
			},
		},
		Anomaly: AnomalyConfig{
			InvoiceZThreshold: 2.5,
			ITCZThreshold:     2.0,
			IQRMultiplier:     1.5,
			MinVendors:        4,
			MinSamples:        3,
		},
		Score: ScoreConfig{
			Weights: ScoreWeights{
				ITCRatio:    0.25,
				ZeroCash:    0.20,
				ShellSignal: 0.20,
				Mismatch:    0.15,
				Overclaim:   0.10,
				Degree:      0.05,
				Volume:      0.05,
			},
			CriticalAbove:      0.85,
			HighAbove:          0.65,
			MediumAbove:        0.35,
			KnownFraudFloor:    0.95,
			MismatchSaturation: 5,
			LeaderboardSize:    20,
		},
		Validation: ValidationConfig{
			IDMode: "length",
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			BatchWorkers: 2,
		},
		Watch: WatchConfig{
			Debounce:          500 * time.Millisecond,
			RebuildsPerMinute: 12,
			Burst:             1,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Output: OutputConfig{
			Dir:    "./gstgraph-out",
			Indent: true,
		},
		Log: LogConfig{
			Environment: "development",
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
		Neo4j: Neo4jConfig{
			Enabled:   false,
			URI:       "neo4j://localhost:7687",
			Username:  "neo4j",
			Database:  "neo4j",
			BatchSize: 500,
		},
	}
}
