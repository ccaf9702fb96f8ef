package config

import "runtime"

const (
	defaultLogDir               = "~/.local/share/tilegrind/logs"
	defaultEngineBinary         = "pdal"
	defaultEngineTimeoutSeconds = 6000
	defaultTargetCount          = 100
	defaultWorkers              = 20
	defaultExtentThreshold      = 1000.0
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Engine: Engine{
			Binary:         defaultEngineBinary,
			TimeoutSeconds: defaultEngineTimeoutSeconds,
		},
		Batch: Batch{
			TargetCount: defaultTargetCount,
			Workers:     defaultWorkers,
		},
		Correction: Correction{
			ExtentThreshold: defaultExtentThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func runtimeWorkers() int {
	return runtime.NumCPU()
}
