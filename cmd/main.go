package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tutorwatch/tutorwatch/pkg/engine"
	"github.com/tutorwatch/tutorwatch/pkg/mixer"
	"github.com/tutorwatch/tutorwatch/pkg/monitor"
	"github.com/tutorwatch/tutorwatch/pkg/trace"
)

func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Printf("tracing disabled: %v", err)
	}
	defer trace.Shutdown(context.Background())

	cfg := engine.DefaultConfig()
	cfg.Mixer.ChannelAGain = mixer.PercentToGain(getEnvFloat("CHANNEL_A_PERCENT", 100))
	cfg.Mixer.ChannelBGain = mixer.PercentToGain(getEnvFloat("CHANNEL_B_PERCENT", 100))
	cfg.Mixer.AutoDuckEnabled = getEnvBool("AUTO_DUCK_ENABLED", true)
	cfg.Mixer.AutoDuckAmount = getEnvFloat("AUTO_DUCK_AMOUNT", cfg.Mixer.AutoDuckAmount)
	cfg.Mixer.AutoDuckThresholdDb = getEnvFloat("AUTO_DUCK_THRESHOLD_DB", cfg.Mixer.AutoDuckThresholdDb)
	cfg.Mixer.AutoDuckAttackMs = getEnvInt("AUTO_DUCK_ATTACK_MS", cfg.Mixer.AutoDuckAttackMs)
	cfg.Mixer.AutoDuckReleaseMs = getEnvInt("AUTO_DUCK_RELEASE_MS", cfg.Mixer.AutoDuckReleaseMs)
	cfg.Detector.MinDurationMs = getEnvInt("SPEECH_MIN_DURATION_MS", cfg.Detector.MinDurationMs)
	cfg.Detector.SilenceDelayMs = getEnvInt("SPEECH_SILENCE_DELAY_MS", cfg.Detector.SilenceDelayMs)

	eng := engine.NewEngine(cfg)
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer eng.Destroy()

	monCfg := monitor.DefaultConfig()
	monCfg.Addr = getEnv("MONITOR_ADDR", monCfg.Addr)
	mon := monitor.NewServer(monCfg, eng)
	if err := mon.Start(); err != nil {
		log.Fatal(err)
	}

	log.Printf("session %s ready on %s%s", eng.ID(), monCfg.Addr, monCfg.Path)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mon.Stop(shutdownCtx); err != nil {
		log.Printf("monitor shutdown: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
