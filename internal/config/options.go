package config

// Options is the flat CLI/config surface consumed by humacli. Precedence
// is CLI flag > environment (SC0710_*) > TOML file > default.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"sc0710.toml"`

	// Hardware
	PCIAddress string `help:"PCI address of the capture card (domain:bus:dev.fn)" default:"" toml:"hw.pci_address" env:"HW_PCI_ADDRESS"`
	Simulate   bool   `help:"Run against a simulated card instead of hardware" default:"false" toml:"hw.simulate" env:"HW_SIMULATE"`

	// Server
	Port string `help:"Control API listen address" short:"p" default:":8710" toml:"server.port" env:"SERVER_PORT"`

	// Signal acquisition
	PollIntervalMs        int `help:"HDMI status poll interval in milliseconds" default:"200" toml:"signal.poll_interval_ms" env:"SIGNAL_POLL_INTERVAL_MS"`
	StabilizationDelayMs  int `help:"Settle delay after lock or timing change before DMA resync" default:"150" toml:"signal.stabilization_delay_ms" env:"SIGNAL_STABILIZATION_DELAY_MS"`
	NoTimingPollThreshold int `help:"Consecutive all-zero-timing polls before declaring no device" default:"3" toml:"signal.no_timing_threshold" env:"SIGNAL_NO_TIMING_THRESHOLD"`

	// Delivery
	PlaceholderFPS int `help:"Placeholder frame cadence when no signal is locked" default:"30" toml:"delivery.placeholder_fps" env:"DELIVERY_PLACEHOLDER_FPS"`

	// Runtime toggles (also live-reloadable from the TOML file)
	Verbose           bool   `help:"Enable verbose (debug) logging everywhere" default:"false" toml:"runtime.verbose" env:"RUNTIME_VERBOSE"`
	StatusImages      bool   `help:"Render status images instead of plain color bars" default:"true" toml:"runtime.status_images" env:"RUNTIME_STATUS_IMAGES"`
	ForceEOTF         string `help:"Transfer function override: auto, sdr, pq, hlg" default:"auto" toml:"runtime.force_eotf" env:"RUNTIME_FORCE_EOTF"`
	ForceQuantization string `help:"Quantization override: auto, limited, full" default:"auto" toml:"runtime.force_quantization" env:"RUNTIME_FORCE_QUANTIZATION"`

	// Logging
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingTransport string `help:"Register transport logging level" default:"info" toml:"logging.transport" env:"LOGGING_TRANSPORT"`
	LoggingSignal    string `help:"Signal monitor logging level" default:"info" toml:"logging.signal" env:"LOGGING_SIGNAL"`
	LoggingDMA       string `help:"DMA manager logging level" default:"info" toml:"logging.dma" env:"LOGGING_DMA"`
	LoggingStream    string `help:"Stream multiplexer logging level" default:"info" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingEngine    string `help:"Engine logging level" default:"info" toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}
