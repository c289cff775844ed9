package config

// Mode selects the classification engine used by organize.
type Mode string

const (
	ModeDatabase    Mode = "database"
	ModeAutoCluster Mode = "auto-cluster"
)

// CopyOrMove selects how the executor places files.
type CopyOrMove string

const (
	CopyMode CopyOrMove = "copy"
	MoveMode CopyOrMove = "move"
)

// Config is the fully-resolved configuration for a run: environment
// defaults with CLI flag overrides merged on top (see Defaults, LoadEnv and
// Merge).
type Config struct {
	SourceDir  string
	OutputDir  string
	Mode       Mode
	CopyOrMove CopyOrMove
	DryRun     bool
	Recursive  bool

	// Vision backend.
	VisionBaseURL string
	VisionAPIKey  string

	// Thresholds (spec.md §6 environment keys).
	ConfidenceThreshold float64 // VISION_CONFIDENCE_THRESHOLD; mode-dependent default
	TExactSeconds       int     // T_EXACT_SECONDS, default 10
	THighSeconds        int     // T_HIGH_SECONDS, default 30
	MaxImageMB          float64 // MAX_IMAGE_MB, default 5.0
	MaxImageDim         int     // MAX_IMAGE_DIM, default 8000

	// Retry / timeout policy for the vision client.
	RetryAttempts int
	RetryDelay    int // seconds
	VisionTimeout int // seconds

	// Cache/roster file locations, relative to the working directory
	// unless absolute.
	CacheFile  string
	RosterFile string

	// Cooldown between engine batches (supplemented feature, see SPEC_FULL.md §9).
	// No CLI flag or environment key sets it, and the engine does not read it.
	CooldownSeconds int

	// Worker pool size for the engine; 0 means runtime.NumCPU().
	Workers int

	// Deterministic ordering of image processing (spec.md §5).
	Deterministic bool

	LogLevel string
}

// DefaultConfidenceThreshold returns the mode-dependent default confidence
// threshold per spec.md §4.6 (database, 0.7) and §4.7 (auto-cluster, 0.5).
func DefaultConfidenceThreshold(mode Mode) float64 {
	if mode == ModeAutoCluster {
		return 0.5
	}
	return 0.7
}
