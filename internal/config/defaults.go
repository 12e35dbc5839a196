package config

const (
	defaultConfigPath             = "~/.config/wmclean/config.toml"
	defaultWorkDir                = "~/.cache/wmclean/work"
	defaultOutputDir              = "~/wmclean"
	defaultLogDir                 = "~/.local/share/wmclean/logs"
	defaultStateDir               = "~/.local/share/wmclean"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultColorMode              = "gray"
	defaultTier                   = "medium"
	defaultDilateRadius           = 1
	defaultWindowRadius           = 2
	defaultMaxPasses              = 64
	defaultRetryAttempts          = 3
	defaultInitialBackoffMS       = 1000
	defaultMaxBackoffMS           = 10000
	defaultBackoffMultiplier      = 2.0
	defaultBatchConcurrency       = 2
	defaultChunkConcurrency       = 1
	defaultChunkMaxBytes          = 20 << 20
	defaultChunkAttempts          = 2
	defaultDocumentScale          = 2.0
	defaultPdftoppmBinary         = "pdftoppm"
	defaultFPSCap                 = 10
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultVideoCodec             = "libx264"
	defaultVideoCRF               = 20
	defaultFinalEncoder           = "none"
	defaultAssemblyTimeoutSeconds = 1800
	defaultDaemonPollSeconds      = 5
	defaultMetricsBind            = "127.0.0.1:9478"
	defaultProviderTimeoutSeconds = 60
	defaultPollIntervalMS         = 2000
	defaultPollAttempts           = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Classifier: Classifier{
			ColorMode:    defaultColorMode,
			Tier:         defaultTier,
			DilateRadius: defaultDilateRadius,
		},
		Inpaint: Inpaint{
			WindowRadius: defaultWindowRadius,
			MaxPasses:    defaultMaxPasses,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryAttempts,
			InitialBackoffMS: defaultInitialBackoffMS,
			MaxBackoffMS:     defaultMaxBackoffMS,
			Multiplier:       defaultBackoffMultiplier,
		},
		Batch: Batch{
			Concurrency:      defaultBatchConcurrency,
			ChunkConcurrency: defaultChunkConcurrency,
		},
		Chunking: Chunking{
			MaxBytes: defaultChunkMaxBytes,
			Attempts: defaultChunkAttempts,
		},
		Document: Document{
			Scale:          defaultDocumentScale,
			PdftoppmBinary: defaultPdftoppmBinary,
		},
		Video: Video{
			FPSCap:        defaultFPSCap,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Codec:         defaultVideoCodec,
			CRF:           defaultVideoCRF,
			FinalEncoder:  defaultFinalEncoder,
		},
		Pipeline: Pipeline{
			AssemblyTimeoutSeconds: defaultAssemblyTimeoutSeconds,
		},
		Daemon: Daemon{
			PollIntervalSeconds: defaultDaemonPollSeconds,
			MetricsBind:         defaultMetricsBind,
		},
	}
}
