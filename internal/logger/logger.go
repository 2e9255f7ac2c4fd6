package logger

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Options configure the process logger.
type Options struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty: stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// New returns a logger built from opts. There is no process-wide instance; main owns it
// and hands it to the components that log.
func New(opts Options) *Logger {
	return newZapLogger(opts)
}
