// Package build defines the domain types for remote BuildMaster build jobs:
// the operator-supplied configuration, the lifecycle status enumeration, and
// the immutable status snapshots returned by polling.
package build

import (
	"fmt"
	"time"
)

// Status is the coarse-grained lifecycle state of a remote build.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusStalled   Status = "stalled"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further status changes can occur for a build
// in this state. The remote watchdog kills stalled builds, so "stalled" is
// terminal from the client's point of view.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusStalled, StatusCancelled:
		return true
	}
	return false
}

// Mode selects which build script the remote runs.
type Mode string

const (
	ModeQuick        Mode = "quick"
	ModeFull         Mode = "full"
	ModePhased       Mode = "phased"
	ModePhasedProd   Mode = "phased-prod"
	ModeClean        Mode = "clean"
	ModeRAMOptimized Mode = "ram-optimized"
)

// Modes lists all valid build modes.
var Modes = []Mode{ModeQuick, ModeFull, ModePhased, ModePhasedProd, ModeClean, ModeRAMOptimized}

// ParseMode validates a build mode string.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown build mode: %q", s)
}

// Build types accepted by the remote API.
const (
	TypeDevelopment = "development"
	TypeProduction  = "production"
)

// Config is the operator-supplied description of how a build should run.
// It is immutable once submitted; validation here is structural only, the
// remote system decides whether the build is actually feasible.
type Config struct {
	Workers          int  `json:"workers,omitempty" yaml:"workers"`
	MaxOldSpaceSize  int  `json:"max_old_space_size,omitempty" yaml:"max_old_space_size"`
	MaxSemiSpaceSize int  `json:"max_semi_space_size,omitempty" yaml:"max_semi_space_size"`
	BuildMode        Mode `json:"build_mode" yaml:"build_mode"`

	// BuildType is "development" or "production".
	BuildType string `json:"build_type,omitempty" yaml:"build_type"`

	TestDatabase bool `json:"test_database" yaml:"test_database"`
	TestRedis    bool `json:"test_redis" yaml:"test_redis"`
	SkipDeps     bool `json:"skip_deps" yaml:"skip_deps"`
	ForceClean   bool `json:"force_clean" yaml:"force_clean"`

	ExperimentalFlags []string `json:"experimental_flags,omitempty" yaml:"experimental_flags"`

	// Advanced toggles.
	UseRedisCache      bool `json:"use_redis_cache" yaml:"use_redis_cache"`
	IncrementalBuild   bool `json:"incremental_build" yaml:"incremental_build"`
	SkipTypeCheck      bool `json:"skip_type_check" yaml:"skip_type_check"`
	ParallelProcessing bool `json:"parallel_processing" yaml:"parallel_processing"`
	MinifyOutput       bool `json:"minify_output" yaml:"minify_output"`
	SourceMaps         bool `json:"source_maps" yaml:"source_maps"`
	TreeShaking        bool `json:"tree_shaking" yaml:"tree_shaking"`
	CodeSplitting      bool `json:"code_splitting" yaml:"code_splitting"`
	CompressAssets     bool `json:"compress_assets" yaml:"compress_assets"`
	OptimizeImages     bool `json:"optimize_images" yaml:"optimize_images"`
	RemoveConsoleLogs  bool `json:"remove_console_logs" yaml:"remove_console_logs"`
	ExperimentalTurbo  bool `json:"experimental_turbo" yaml:"experimental_turbo"`
}

// DefaultConfig mirrors the remote API's defaults for a full development build.
func DefaultConfig() Config {
	return Config{
		BuildMode:          ModeFull,
		BuildType:          TypeDevelopment,
		TestDatabase:       true,
		TestRedis:          true,
		ParallelProcessing: true,
		MinifyOutput:       true,
		TreeShaking:        true,
		CodeSplitting:      true,
		CompressAssets:     true,
	}
}

// Validate checks structural shape: numeric ranges and enum membership.
// A zero Workers value means "let the remote pick".
func (c Config) Validate() error {
	if c.Workers < 0 || c.Workers > 16 {
		return fmt.Errorf("workers must be between 0 and 16, got %d", c.Workers)
	}
	if c.MaxOldSpaceSize < 0 || c.MaxOldSpaceSize > 32768 {
		return fmt.Errorf("max_old_space_size must be between 0 and 32768, got %d", c.MaxOldSpaceSize)
	}
	if c.MaxSemiSpaceSize < 0 || c.MaxSemiSpaceSize > 4096 {
		return fmt.Errorf("max_semi_space_size must be between 0 and 4096, got %d", c.MaxSemiSpaceSize)
	}
	if _, err := ParseMode(string(c.BuildMode)); err != nil {
		return err
	}
	if c.BuildType != "" && c.BuildType != TypeDevelopment && c.BuildType != TypeProduction {
		return fmt.Errorf("build_type must be %q or %q, got %q", TypeDevelopment, TypeProduction, c.BuildType)
	}
	return nil
}

// Snapshot is one polled sample of a build's remote state. Each poll produces
// a new value; snapshots are never mutated in place.
type Snapshot struct {
	BuildID         string     `json:"build_id"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Progress        float64    `json:"progress,omitempty"`
	CurrentStep     string     `json:"current_step,omitempty"`
	Message         string     `json:"message,omitempty"`
	Error           string     `json:"error,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// Handle identifies one build attempt being supervised by this client.
// The remote system is the source of truth for the build's existence; the
// handle is only a reference plus the client-observed start time.
type Handle struct {
	BuildID   string
	StartedAt time.Time
}
