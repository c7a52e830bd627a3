package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	bridge "github.com/koscakluka/bridge-core/core"
	"github.com/koscakluka/bridge-core/core/telephony/twilio"
	"github.com/koscakluka/bridge-core/core/voiceagents"
	"github.com/koscakluka/bridge-core/core/voiceagents/elevenlabs"
	"github.com/koscakluka/bridge-core/internal/config"
	"github.com/koscakluka/bridge-core/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	signedURLs := elevenlabs.NewSignedURLClient()
	coordinator := bridge.NewCoordinator(
		bridge.WithSignedURLFetcher(signedURLs),
		bridge.WithAgentDialer(func(ctx context.Context, signedURL string, opts ...voiceagents.SessionOption) (bridge.AgentSession, error) {
			return elevenlabs.DialSession(ctx, signedURL, opts...)
		}),
		bridge.WithAgentCredentials(cfg.ElevenLabs.AgentID, cfg.ElevenLabs.APIKey),
		bridge.WithDefaultOverrides(cfg.Agent.Prompt, cfg.Agent.FirstMessage),
		bridge.WithDynamicVariables(map[string]any{
			"caller_number": cfg.Twilio.PhoneNumber,
		}),
	)

	calls := twilio.NewCallClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
	srv := server.New(coordinator, calls, cfg.Server.PublicURL, cfg.Server.StaticDir)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown failed: %v", err)
	}
}
