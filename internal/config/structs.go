//nolint:lll
package config

// Config represents the complete configuration for the arsl application.
// It covers every command (extract, train, predict, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level"  yaml:"log_level"  json:"log_level"`
	Verbose   bool   `mapstructure:"verbose"    yaml:"verbose"    json:"verbose"`

	// Hand landmark detector
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`

	// Serving classifier and label mapping
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`

	// Feature extraction over a corpus
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Classifier training
	Trainer TrainerConfig `mapstructure:"trainer" yaml:"trainer" json:"trainer"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectorConfig contains hand landmark detection settings.
type DetectorConfig struct {
	ModelPath               string  `mapstructure:"model_path"                yaml:"model_path"                json:"model_path"`
	LibraryPath             string  `mapstructure:"library_path"              yaml:"library_path"              json:"library_path"`
	MaxHands                int     `mapstructure:"max_hands"                 yaml:"max_hands"                 json:"max_hands"`
	ServingMinConfidence    float64 `mapstructure:"serving_min_confidence"    yaml:"serving_min_confidence"    json:"serving_min_confidence"`
	ExtractionMinConfidence float64 `mapstructure:"extraction_min_confidence" yaml:"extraction_min_confidence" json:"extraction_min_confidence"`
	NumThreads              int     `mapstructure:"num_threads"               yaml:"num_threads"               json:"num_threads"`
	Layout                  string  `mapstructure:"layout"                    yaml:"layout"                    json:"layout"`
	InputSize               int     `mapstructure:"input_size"                yaml:"input_size"                json:"input_size"`
	ScoreSigmoid            bool    `mapstructure:"score_sigmoid"             yaml:"score_sigmoid"             json:"score_sigmoid"`
	WarmupIterations        int     `mapstructure:"warmup_iterations"         yaml:"warmup_iterations"         json:"warmup_iterations"`

	// Tensor names
	InputName        string `mapstructure:"input_name"        yaml:"input_name"        json:"input_name"`
	LandmarksOutput  string `mapstructure:"landmarks_output"  yaml:"landmarks_output"  json:"landmarks_output"`
	ScoreOutput      string `mapstructure:"score_output"      yaml:"score_output"      json:"score_output"`
	HandednessOutput string `mapstructure:"handedness_output" yaml:"handedness_output" json:"handedness_output"`

	// Palm detection stage; disabling it runs the landmark model on the whole frame
	PalmDetection    bool    `mapstructure:"palm_detection"     yaml:"palm_detection"     json:"palm_detection"`
	PalmModelPath    string  `mapstructure:"palm_model_path"    yaml:"palm_model_path"    json:"palm_model_path"`
	PalmInputSize    int     `mapstructure:"palm_input_size"    yaml:"palm_input_size"    json:"palm_input_size"`
	PalmMinScore     float64 `mapstructure:"palm_min_score"     yaml:"palm_min_score"     json:"palm_min_score"`
	PalmNMSThreshold float64 `mapstructure:"palm_nms_threshold" yaml:"palm_nms_threshold" json:"palm_nms_threshold"`
	PalmNMSMethod    string  `mapstructure:"palm_nms_method"    yaml:"palm_nms_method"    json:"palm_nms_method"`
	PalmInputName    string  `mapstructure:"palm_input_name"    yaml:"palm_input_name"    json:"palm_input_name"`
	PalmBoxesOutput  string  `mapstructure:"palm_boxes_output"  yaml:"palm_boxes_output"  json:"palm_boxes_output"`
	PalmScoresOutput string  `mapstructure:"palm_scores_output" yaml:"palm_scores_output" json:"palm_scores_output"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"      json:"enabled"`
	Device      int    `mapstructure:"device"       yaml:"device"       json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// ClassifierConfig contains serving classifier settings.
type ClassifierConfig struct {
	ArtifactPath string         `mapstructure:"artifact_path" yaml:"artifact_path" json:"artifact_path"`
	LabelAliases map[string]int `mapstructure:"label_aliases" yaml:"label_aliases" json:"label_aliases"`
}

// BatchConfig contains corpus extraction settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers"          yaml:"workers"          json:"workers"`
	OutputPath      string   `mapstructure:"output_path"      yaml:"output_path"      json:"output_path"`
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
	ShowProgress    bool     `mapstructure:"show_progress"    yaml:"show_progress"    json:"show_progress"`
	MinClassYield   float64  `mapstructure:"min_class_yield"  yaml:"min_class_yield"  json:"min_class_yield"`
}

// TrainerConfig contains classifier training settings.
type TrainerConfig struct {
	FeatureTablePath string  `mapstructure:"feature_table_path" yaml:"feature_table_path" json:"feature_table_path"`
	Algorithm        string  `mapstructure:"algorithm"          yaml:"algorithm"          json:"algorithm"`
	NEstimators      int     `mapstructure:"n_estimators"       yaml:"n_estimators"       json:"n_estimators"`
	MaxDepth         int     `mapstructure:"max_depth"          yaml:"max_depth"          json:"max_depth"`
	MinSamplesLeaf   int     `mapstructure:"min_samples_leaf"   yaml:"min_samples_leaf"   json:"min_samples_leaf"`
	MaxFeatures      int     `mapstructure:"max_features"       yaml:"max_features"       json:"max_features"`
	K                int     `mapstructure:"k"                  yaml:"k"                  json:"k"`
	TestSize         float64 `mapstructure:"test_size"          yaml:"test_size"          json:"test_size"`
	Seed             int64   `mapstructure:"seed"               yaml:"seed"               json:"seed"`
	ReportFormat     string  `mapstructure:"report_format"      yaml:"report_format"      json:"report_format"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host"             yaml:"host"             json:"host"`
	Port            int             `mapstructure:"port"             yaml:"port"             json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin"      yaml:"cors_origin"      json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb"    yaml:"max_upload_mb"    json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"       yaml:"rate_limit"       json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled"              yaml:"enabled"              json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute"  yaml:"requests_per_minute"  json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour"    yaml:"requests_per_hour"    json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day"     yaml:"max_data_per_day"     json:"max_data_per_day"`
}
