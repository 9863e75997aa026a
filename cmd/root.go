// Package cmd holds the tracknode command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/smazurov/tracknode/internal/api"
	"github.com/smazurov/tracknode/internal/capture"
	"github.com/smazurov/tracknode/internal/config"
	"github.com/smazurov/tracknode/internal/devices"
	"github.com/smazurov/tracknode/internal/encoder"
	"github.com/smazurov/tracknode/internal/engine"
	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/led"
	"github.com/smazurov/tracknode/internal/logging"
	"github.com/smazurov/tracknode/internal/metrics/exporters"
	"github.com/smazurov/tracknode/internal/pipeline"
	"github.com/smazurov/tracknode/internal/sigctl"
	"github.com/smazurov/tracknode/internal/sink"
	"github.com/smazurov/tracknode/internal/stage"
	"github.com/smazurov/tracknode/internal/streaming"
	"github.com/smazurov/tracknode/internal/systemd"
	"github.com/smazurov/tracknode/internal/tuio"
	"github.com/smazurov/tracknode/internal/version"
)

// ErrEngine wraps failures to bring up the capture source and frame loop.
var ErrEngine = errors.New("failed to create engine")

// Options for the CLI - flat structure with toml mapping. The same document
// holds the tracking settings, so one -c path configures both.
type Options struct {
	Config   string
	Headless bool
	List     bool

	// Server settings
	ServerAddr    string `toml:"server.addr" env:"SERVER_ADDR"`
	AllowedOrigin string `toml:"server.allowed_origin" env:"SERVER_ALLOWED_ORIGIN"`

	// Auth settings
	AuthUsername string `toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `toml:"auth.password" env:"AUTH_PASSWORD"`

	// Tracking output
	TrackingBroadcast bool `toml:"tracking.broadcast" env:"TRACKING_BROADCAST"`

	// Features settings
	FeaturesStatusLed bool `toml:"features.status_led" env:"FEATURES_STATUS_LED"`

	// Streaming settings
	StreamingEnabled    bool     `toml:"streaming.enabled" env:"STREAMING_ENABLED"`
	StreamingCodec      string   `toml:"streaming.codec" env:"STREAMING_CODEC"`
	StreamingBitrate    string   `toml:"streaming.bitrate" env:"STREAMING_BITRATE"`
	StreamingPreset     string   `toml:"streaming.preset" env:"STREAMING_PRESET"`
	StreamingGop        int      `toml:"streaming.gop" env:"STREAMING_GOP"`
	StreamingIceServers []string `toml:"streaming.ice_servers" env:"STREAMING_ICE_SERVERS"`

	// Logging settings
	LoggingLevel     string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline  string `toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingEngine    string `toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingStage     string `toml:"logging.stage" env:"LOGGING_STAGE"`
	LoggingCapture   string `toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingEncoder   string `toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingStreaming string `toml:"logging.streaming" env:"LOGGING_STREAMING"`
	LoggingAPI       string `toml:"logging.api" env:"LOGGING_API"`
	LoggingTracking  string `toml:"logging.tuio" env:"LOGGING_TUIO"`
}

// NewRootCmd creates the tracknode command with its sub-commands.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "tracknode",
		Short:         "Camera tracking pipeline",
		Long:          `Reads frames from a camera, runs them through the equalizer, thresholder, finder and calibrator stages and emits tracked objects. Tuned parameters are saved back to the configuration document on exit.`,
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Config = config.ResolvePath(opts.Config, config.SearchPaths())
			loadErr := config.LoadOptions(opts, cmd)

			initLogging(opts)
			if loadErr != nil {
				slog.Warn("Failed to load options", "path", opts.Config, "error", loadErr)
			}

			if opts.List {
				return devices.List(cmd.OutOrStdout(), devices.NewDetector())
			}
			return run(cmd.Context(), opts)
		},
	}

	root.SetVersionTemplate(version.Full() + "\n")

	flags := root.Flags()
	flags.StringVarP(&opts.Config, "config", "c", "", "Path to the configuration document")
	flags.BoolVarP(&opts.Headless, "headless", "n", false, "Run without display, API or stream")
	flags.BoolVarP(&opts.List, "list", "l", false, "List capture devices and exit")

	flags.StringVar(&opts.ServerAddr, "server-addr", ":8090", "Control API listen address")
	flags.StringVar(&opts.AllowedOrigin, "allowed-origin", "", "Browser origin allowed by CORS (any when empty)")
	flags.StringVar(&opts.AuthUsername, "auth-username", "", "Basic auth username")
	flags.StringVar(&opts.AuthPassword, "auth-password", "", "Basic auth password")
	flags.BoolVar(&opts.TrackingBroadcast, "tracking-broadcast", false, "Also send tracked objects over UDP to the configured host and port")
	flags.BoolVar(&opts.FeaturesStatusLed, "features-status-led", false, "Show the pipeline state on the board status LED")

	flags.BoolVar(&opts.StreamingEnabled, "streaming-enabled", false, "Encode the display frame and serve it over WebRTC")
	flags.StringVar(&opts.StreamingCodec, "streaming-codec", "h264", "Encoder name or codec family")
	flags.StringVar(&opts.StreamingBitrate, "streaming-bitrate", "2M", "Target encoder bitrate")
	flags.StringVar(&opts.StreamingPreset, "streaming-preset", "ultrafast", "Encoder preset")
	flags.IntVar(&opts.StreamingGop, "streaming-gop", 30, "Frames between keyframes")
	flags.StringSliceVar(&opts.StreamingIceServers, "streaming-ice-servers", nil, "STUN/TURN URLs (empty for LAN only)")

	flags.StringVar(&opts.LoggingLevel, "logging-level", "info", "Global logging level (debug, info, warn, error)")
	flags.StringVar(&opts.LoggingFormat, "logging-format", "text", "Logging format (text, json)")
	flags.StringVar(&opts.LoggingPipeline, "logging-pipeline", "", "Pipeline logging level")
	flags.StringVar(&opts.LoggingEngine, "logging-engine", "", "Frame loop logging level")
	flags.StringVar(&opts.LoggingStage, "logging-stage", "", "Stage logging level")
	flags.StringVar(&opts.LoggingCapture, "logging-capture", "", "Capture logging level")
	flags.StringVar(&opts.LoggingEncoder, "logging-encoder", "", "Encoder logging level")
	flags.StringVar(&opts.LoggingStreaming, "logging-streaming", "", "WebRTC logging level")
	flags.StringVar(&opts.LoggingAPI, "logging-api", "", "API logging level")
	flags.StringVar(&opts.LoggingTracking, "logging-tracking", "", "Tracking server logging level")

	root.AddCommand(newEncodersCmd())
	return root
}

func initLogging(opts *Options) {
	modules := map[string]string{
		"pipeline":  opts.LoggingPipeline,
		"engine":    opts.LoggingEngine,
		"stage":     opts.LoggingStage,
		"capture":   opts.LoggingCapture,
		"encoder":   opts.LoggingEncoder,
		"streaming": opts.LoggingStreaming,
		"api":       opts.LoggingAPI,
		"tuio":      opts.LoggingTracking,
	}
	for module, level := range modules {
		if level == "" {
			delete(modules, module)
		}
	}
	logging.Initialize(logging.Config{
		Level:   opts.LoggingLevel,
		Format:  opts.LoggingFormat,
		Modules: modules,
	})
}

// run builds the collaborators for one pipeline run and blocks until the
// run has been harvested and saved.
func run(ctx context.Context, opts *Options) error {
	logger := logging.GetLogger("main")
	logger.Info("Starting tracknode", "version", version.String(), "config", opts.Config)

	store := config.NewStore(opts.Config)
	settings := store.Load()
	if opts.Headless {
		settings.Headless = true
	}

	camera, err := capture.LoadCamera(config.RelativeTo(store.Path(), settings.CameraConfig))
	if err != nil {
		logger.Warn("Using default camera settings", "camera", settings.CameraConfig, "error", err)
	}
	source, err := capture.Open(camera)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngine, err)
	}
	eng, err := engine.New(source, engine.Options{Headless: settings.Headless, Display: settings.Display})
	if err != nil {
		source.Close()
		return fmt.Errorf("%w: %w", ErrEngine, err)
	}
	defer eng.Close()

	bus := events.New()

	notifier := systemd.NewNotifier(bus)
	notifier.Start()
	defer notifier.Stop()

	if opts.FeaturesStatusLed {
		ledManager := led.NewManager(led.New(), bus)
		ledManager.Start()
		defer ledManager.Stop()
	}

	emitters := []tuio.Emitter{tuio.NewBusEmitter(bus)}
	if opts.TrackingBroadcast {
		addr := net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
		udp, dialErr := tuio.DialUDP(addr)
		if dialErr != nil {
			logger.Warn("Tracking broadcast disabled", "addr", addr, "error", dialErr)
		} else {
			emitters = append(emitters, udp)
		}
	}
	server := tuio.NewServer(settings.Host, settings.Port, emitters...)

	var broadcaster *streaming.Broadcaster
	var sinkFactory pipeline.SinkFactory
	switch {
	case !opts.StreamingEnabled:
	case settings.Headless:
		logger.Info("Streaming needs a display frame, disabled in headless mode")
	default:
		broadcaster, err = streaming.NewBroadcaster(streaming.Config{
			StreamID:      "display",
			FPS:           camera.FPS,
			ICEServers:    iceServers(opts.StreamingIceServers),
			GatherTimeout: 5 * time.Second,
		})
		if err != nil {
			logger.Warn("Streaming disabled", "error", err)
			break
		}
		defer broadcaster.Close()

		backend := encoder.NewFFmpegBackend(encoder.FFmpegConfig{
			Bitrate:  opts.StreamingBitrate,
			Preset:   opts.StreamingPreset,
			GOP:      opts.StreamingGop,
			Progress: true,
		})
		publisher := broadcaster
		sinkFactory = func() stage.Stage {
			return sink.New(backend, publisher, sink.Config{
				Codec:   opts.StreamingCodec,
				FPS:     camera.FPS,
				Session: "display",
			})
		}

		exporter := exporters.NewSSEExporter(bus)
		exporter.Start(ctx)
		defer exporter.Stop()
	}

	orch := pipeline.New(settings, pipeline.Deps{
		Engine:     eng,
		Store:      store,
		Server:     server,
		Recognizer: stage.NopRecognizer{},
		Sink:       sinkFactory,
		Bus:        bus,
	})

	if err := sigctl.Install(orch); err != nil {
		return err
	}
	defer sigctl.Clear()

	if !settings.Headless {
		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			CORSOrigin:        opts.AllowedOrigin,
			Pipeline:          orch,
			Display:           eng.Interface(),
			EventBus:          bus,
			Detector:          devices.NewDetector(),
			PrometheusHandler: exporters.HTTPHandler(),
		}
		if broadcaster != nil {
			apiOpts.WebRTC = broadcaster
		}

		apiServer := api.NewServer(apiOpts)
		go func() {
			if startErr := apiServer.Start(opts.ServerAddr); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
			}
		}()
		defer func() {
			if stopErr := apiServer.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
		}()
	}

	if err := orch.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutdown complete", "frames", eng.Frames())
	return nil
}

func iceServers(urls []string) []pion.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []pion.ICEServer{{URLs: urls}}
}
