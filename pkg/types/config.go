package types

import "time"

// GuardConfig holds settings for process eviction and forced unmount.
type GuardConfig struct {
	// IdleAttempts is the number of scan/evict rounds before a device is
	// declared busy (default 3).
	IdleAttempts int `json:"idle_attempts" yaml:"idle_attempts" mapstructure:"idle_attempts" validate:"gte=1,lte=10"`

	// RetryDelay is the pause between eviction and re-scan (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`

	// TerminateWait bounds how long a terminated process is given to exit (default 2s).
	TerminateWait time.Duration `json:"terminate_wait" yaml:"terminate_wait" mapstructure:"terminate_wait" validate:"gte=0"`

	// UnmountDelay is the pause between eviction and the dismount request (default 2s).
	UnmountDelay time.Duration `json:"unmount_delay" yaml:"unmount_delay" mapstructure:"unmount_delay" validate:"gte=0"`
}

// CopyConfig holds settings for the bulk mirror copy.
type CopyConfig struct {
	// MaxAttempts is the number of mirror runs before giving up (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1,lte=10"`

	// RetryDelay is the pause between failed runs (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`

	// AttemptTimeout bounds a single mirror run (default 1h).
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout" mapstructure:"attempt_timeout" validate:"gt=0"`

	// Binary is the mirror tool to invoke (default "robocopy").
	Binary string `json:"binary" yaml:"binary" mapstructure:"binary" validate:"required"`
}

// FormatConfig holds settings for reformat and in-place convert.
type FormatConfig struct {
	// FormatTimeout bounds the destructive format command (default 10m).
	FormatTimeout time.Duration `json:"format_timeout" yaml:"format_timeout" mapstructure:"format_timeout" validate:"gt=0"`

	// ConvertTimeout bounds the in-place convert command (default 5m).
	ConvertTimeout time.Duration `json:"convert_timeout" yaml:"convert_timeout" mapstructure:"convert_timeout" validate:"gt=0"`

	// ReadyAttempts is the number of post-format readiness polls (default 10).
	ReadyAttempts int `json:"ready_attempts" yaml:"ready_attempts" mapstructure:"ready_attempts" validate:"gte=1"`

	// ReadyInterval is the pause between readiness polls (default 1s).
	ReadyInterval time.Duration `json:"ready_interval" yaml:"ready_interval" mapstructure:"ready_interval" validate:"gte=0"`

	// SettleDelay is the wait after an in-place convert before reporting
	// success (default 5s).
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay" validate:"gte=0"`

	// LabelPrefix prefixes the drive letter in the new volume label (default "USB-").
	LabelPrefix string `json:"label_prefix" yaml:"label_prefix" mapstructure:"label_prefix" validate:"max=8"`
}

// CapacityConfig holds settings for the pre-backup space check.
type CapacityConfig struct {
	// SafetyFactor multiplies used bytes to cover filesystem overhead (default 1.2).
	SafetyFactor float64 `json:"safety_factor" yaml:"safety_factor" mapstructure:"safety_factor" validate:"gte=1,lte=4"`
}

// StagingConfig holds settings for the temporary backup directory.
type StagingConfig struct {
	// Root is the parent of staging areas. Empty means <SystemDrive>\Temp.
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Prefix starts every staging directory name (default "USB_BACKUP_").
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix" validate:"required"`
}

// JournalConfig holds settings for the conversion history database.
type JournalConfig struct {
	// Enabled turns history recording on (default true).
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir is the directory holding history.db (default "~/.config/fsconvert").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`

	// Format is console or json.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"required,oneof=console json"`

	// Dir, when set, receives a timestamped debug_YYYYMMDD_HHMMSS.log file.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Config groups all settings for a conversion run.
type Config struct {
	Guard    GuardConfig    `json:"guard" yaml:"guard" mapstructure:"guard"`
	Copy     CopyConfig     `json:"copy" yaml:"copy" mapstructure:"copy"`
	Format   FormatConfig   `json:"format" yaml:"format" mapstructure:"format"`
	Capacity CapacityConfig `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
	Staging  StagingConfig  `json:"staging" yaml:"staging" mapstructure:"staging"`
	Journal  JournalConfig  `json:"journal" yaml:"journal" mapstructure:"journal"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// DefaultConfig returns the settings the host tools are tuned for.
func DefaultConfig() Config {
	return Config{
		Guard: GuardConfig{
			IdleAttempts:  3,
			RetryDelay:    2 * time.Second,
			TerminateWait: 2 * time.Second,
			UnmountDelay:  2 * time.Second,
		},
		Copy: CopyConfig{
			MaxAttempts:    3,
			RetryDelay:     2 * time.Second,
			AttemptTimeout: time.Hour,
			Binary:         "robocopy",
		},
		Format: FormatConfig{
			FormatTimeout:  10 * time.Minute,
			ConvertTimeout: 5 * time.Minute,
			ReadyAttempts:  10,
			ReadyInterval:  time.Second,
			SettleDelay:    5 * time.Second,
			LabelPrefix:    "USB-",
		},
		Capacity: CapacityConfig{
			SafetyFactor: 1.2,
		},
		Staging: StagingConfig{
			Prefix: "USB_BACKUP_",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
