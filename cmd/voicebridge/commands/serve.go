package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/solutionstwo/voicebridge/pkg/calendar"
	"github.com/solutionstwo/voicebridge/pkg/config"
	"github.com/solutionstwo/voicebridge/pkg/embed"
	"github.com/solutionstwo/voicebridge/pkg/httpapi"
	"github.com/solutionstwo/voicebridge/pkg/knowledge"
	"github.com/solutionstwo/voicebridge/pkg/kv"
	"github.com/solutionstwo/voicebridge/pkg/openairt"
	"github.com/solutionstwo/voicebridge/pkg/relay"
	"github.com/solutionstwo/voicebridge/pkg/storage"
	"github.com/solutionstwo/voicebridge/pkg/tools"
	"github.com/solutionstwo/voicebridge/pkg/twilio"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telephony relay server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Shared KV store for knowledge documents and calendar accounts.
	store, err := kv.OpenBadger(kv.BadgerOptions{
		Dir:      cfg.Knowledge.DataDir,
		InMemory: cfg.Knowledge.DataDir == "",
	})
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}
	defer store.Close()

	embedder := embed.NewOpenAI(cfg.OpenAI.APIKey,
		embed.WithModel(cfg.OpenAI.EmbedModel),
		embed.WithDimension(cfg.OpenAI.EmbedDimension),
	)
	kb, err := knowledge.Open(ctx, store, embedder)
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}

	calendarSvc, err := calendar.NewService(ctx, store)
	if err != nil {
		return fmt.Errorf("open calendar: %w", err)
	}

	registry := tools.NewRegistry(
		tools.NewRAGSearch(kb),
		tools.NewScheduleAppointment(calendarSvc, cfg.Calendar.DefaultAppointmentDuration),
	)

	relayOpts := []relay.Option{relay.WithTools(registry)}
	if cfg.Recording.Enabled {
		recStore, err := recordingStore(cfg)
		if err != nil {
			return fmt.Errorf("open recording store: %w", err)
		}
		relayOpts = append(relayOpts, relay.WithRecording(relay.NewRecorderFactory(recStore, cfg.Recording.Prefix)))
	}

	opts := httpapi.Options{
		Config:    cfg,
		Realtime:  openairt.NewClient(cfg.OpenAI.APIKey),
		Relay:     relay.New(relayOpts...),
		Registry:  registry,
		Knowledge: kb,
		Calendar:  calendarSvc,
		Accounts:  calendarSvc,
	}
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		opts.Twilio = twilio.NewRestClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: httpapi.NewServer(opts).Handler(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("server listening", "addr", cfg.Server.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// recordingStore builds the FileStore call audio is archived to.
func recordingStore(cfg *config.Config) (storage.FileStore, error) {
	switch cfg.Recording.Backend {
	case "", "local":
		return storage.NewLocal(cfg.Recording.Dir)
	case "s3":
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
		client := s3.New(s3.Options{
			Region: region,
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				}, nil
			}),
		})
		return storage.NewS3(client, cfg.Recording.Bucket, cfg.Recording.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown recording backend %q", cfg.Recording.Backend)
	}
}
