package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chriscow/meetbot/internal/worker"
	"github.com/chriscow/meetbot/pkg/config"
	"github.com/chriscow/meetbot/pkg/metrics"
	_ "github.com/chriscow/meetbot/pkg/plugin/assemblyai" // Import to register AssemblyAI plugin
	_ "github.com/chriscow/meetbot/pkg/plugin/elevenlabs" // Import to register ElevenLabs plugin
	_ "github.com/chriscow/meetbot/pkg/plugin/energy"     // Import to register energy VAD plugin
	_ "github.com/chriscow/meetbot/pkg/plugin/openai"     // Import to register OpenAI plugin
	"github.com/chriscow/meetbot/pkg/turn"
	"github.com/chriscow/meetbot/pkg/version"
	"github.com/livekit/protocol/auth"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meetbot",
	Short: "meetbot - a voice AI meeting assistant that records every audio track",
	Long: `meetbot joins a LiveKit room as a voice assistant and submits every audio
track published in the room to the LiveKit Egress service for S3 recording.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Join a room and run the assistant session",
	RunE: func(cmd *cobra.Command, args []string) error {
		roomName, _ := cmd.Flags().GetString("room")

		logger := setupLogger()
		logger.Info("Starting assistant session",
			slog.String("service", "meetbot"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("room", roomName))

		if roomName == "" {
			return fmt.Errorf("--room is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		inst := startMetrics(cfg, logger)

		return runSession(ctx, cfg, roomName, inst, logger)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run against the control plane, handling assigned rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		logger.Info("Starting worker",
			slog.String("service", "meetbot"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit))

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		inst := startMetrics(cfg, logger)

		token, err := workerToken(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
		if err != nil {
			return fmt.Errorf("build worker token: %w", err)
		}

		w := worker.New(worker.Config{
			URL:   cfg.LiveKitURL,
			Token: token,
			OnJob: func(ctx context.Context, roomName string) error {
				return runSession(ctx, cfg, roomName, inst, logger)
			},
		}, logger)

		if err := w.Run(ctx); err != nil {
			logger.Error("Worker failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	},
}

var downloadModelsCmd = &cobra.Command{
	Use:   "download-models",
	Short: "Download turn detection model files",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		logger.Info("Downloading turn detection models")

		downloader := turn.NewDownloader("")
		if err := downloader.DownloadAll(); err != nil {
			logger.Error("Model download failed", slog.String("error", err.Error()))
			return err
		}

		logger.Info("Turn detection models downloaded")
		return nil
	},
}

var meetLinkCmd = &cobra.Command{
	Use:   "meet-link",
	Short: "Print a meeting join URL with a signed access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		roomName, _ := cmd.Flags().GetString("room")
		identity, _ := cmd.Flags().GetString("identity")
		validFor, _ := cmd.Flags().GetDuration("valid-for")

		if roomName == "" {
			return fmt.Errorf("--room is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		token, err := joinToken(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, roomName, identity, validFor)
		if err != nil {
			return fmt.Errorf("build join token: %w", err)
		}

		fmt.Println(meetLink(cfg.LiveKitURL, token))
		return nil
	},
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("LK_LOG_FORMAT")
	logLevel := os.Getenv("LK_LOG_LEVEL")

	var handler slog.Handler
	opts := &slog.HandlerOptions{}

	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// startMetrics registers the Prometheus instruments and serves them when a
// listen address is configured. Returns nil instruments when metrics are off.
func startMetrics(cfg config.Config, logger *slog.Logger) *metrics.Instruments {
	if cfg.MetricsAddr == "" {
		return nil
	}

	inst := metrics.NewInstruments("meetbot")
	go func() {
		logger.Info("Starting metrics server", slog.String("addr", cfg.MetricsAddr))
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return inst
}

// joinToken builds a signed room-join token for the given identity.
func joinToken(apiKey, apiSecret, roomName, identity string, validFor time.Duration) (string, error) {
	at := auth.NewAccessToken(apiKey, apiSecret)

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}

	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(validFor)

	return at.ToJWT()
}

// workerToken grants room admission for rooms assigned later by the control
// plane, so the room name is left open.
func workerToken(apiKey, apiSecret string) (string, error) {
	at := auth.NewAccessToken(apiKey, apiSecret)

	grant := &auth.VideoGrant{
		RoomJoin: true,
	}

	at.AddGrant(grant).
		SetIdentity("meetbot-worker").
		SetValidFor(24 * time.Hour)

	return at.ToJWT()
}

// meetLink formats the join URL for the hosted meet client.
func meetLink(liveKitURL, token string) string {
	q := url.Values{}
	q.Set("liveKitUrl", liveKitURL)
	q.Set("token", token)
	return "https://meet.livekit.io/custom?" + q.Encode()
}

func init() {
	runCmd.Flags().String("room", "", "Room name to join")
	runCmd.MarkFlagRequired("room")

	meetLinkCmd.Flags().String("room", "", "Room name the link admits to")
	meetLinkCmd.Flags().String("identity", "human-user", "Participant identity embedded in the token")
	meetLinkCmd.Flags().Duration("valid-for", 6*time.Hour, "Token validity duration")
	meetLinkCmd.MarkFlagRequired("room")

	rootCmd.AddCommand(versionCmd, runCmd, workerCmd, meetLinkCmd, downloadModelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
