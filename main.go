package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/vocastar/internal/admin"
	"github.com/example/vocastar/internal/ai"
	"github.com/example/vocastar/internal/bot"
	"github.com/example/vocastar/internal/config"
	"github.com/example/vocastar/internal/excel"
	"github.com/example/vocastar/internal/grading"
	"github.com/example/vocastar/internal/httpapi"
	"github.com/example/vocastar/internal/persistence"
	"github.com/example/vocastar/internal/progress"
	"github.com/example/vocastar/internal/scheduler"
	"github.com/example/vocastar/internal/service"
	"github.com/example/vocastar/internal/speech"
	"github.com/example/vocastar/internal/store"
	gonanoid "github.com/matoous/go-nanoid/v2"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.StoreEngine, "store", cfg.StoreEngine, "record store: sqlite, postgres, redis or memory")
	flag.StringVar(&cfg.StoreDSN, "dsn", cfg.StoreDSN, "sqlite path, postgres DSN or redis address")
	flag.StringVar(&cfg.CurriculumFile, "curriculum", cfg.CurriculumFile, "idiom table (.xlsx or .csv)")
	flag.StringVar(&cfg.WeeksFile, "weeks", cfg.WeeksFile, "week title table (.xlsx or .csv)")
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address, empty disables the API")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	kv, closer, err := store.NewByEngine(ctx, cfg.StoreEngine, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreEngine, err)
	}
	defer closer.Close()
	records := persistence.NewAdapter(kv, cfg.RecordPrefix, cfg.AdminID)

	cur, err := excel.LoadCurriculum(cfg.CurriculumFile, cfg.WeeksFile)
	if err != nil {
		log.Fatalf("Failed to load curriculum: %v", err)
	}
	log.Printf("loaded %d idioms from %s", cur.Len(), cfg.CurriculumFile)

	timers := scheduler.New()
	timers.Start()
	defer timers.Stop()

	deps := service.Deps{
		Records:    records,
		Curriculum: cur,
		Admin:      admin.New(records),
		Machine: progress.Options{
			Timers:            timers,
			CompletionBonus:   cfg.CompletionBonus,
			PointsPerAnswer:   cfg.FinalExamPointsPerAnswer,
			CelebrationWindow: cfg.CelebrationWindow,
		},
	}

	var judge grading.SemanticJudge
	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewClient(ai.Config{
			APIKey:       cfg.GeminiAPIKey,
			BaseURL:      cfg.GeminiBaseURL,
			GradingModel: cfg.GeminiGradingModel,
			TTSModel:     cfg.GeminiTTSModel,
			Voice:        cfg.GeminiVoice,
			Timeout:      cfg.GeminiTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		judge = client
		deps.Speech = speech.NewService(client, speech.NewCache())
		deps.Preloader = speech.NewPreloader(deps.Speech, timers, cfg.PreloadDelay)
	} else {
		log.Println("Warning: GEMINI_API_KEY is not set, meaning answers use substring matching and speech is disabled")
	}
	deps.Machine.Grader = grading.NewMeaningGrader(judge)

	svc := service.New(deps)
	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		secret := cfg.JWTSecret
		if secret == "" {
			secret, err = gonanoid.New(48)
			if err != nil {
				log.Fatalf("Failed to generate token secret: %v", err)
			}
			log.Println("Warning: VOCASTAR_JWT_SECRET is not set, tokens will not survive a restart")
		}
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewServer(svc, httpapi.NewTokens(secret), cfg.CORSOrigins).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, svc)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		g.Go(func() error {
			log.Println("Bot started. Press Ctrl+C to stop.")
			return b.Start(ctx)
		})
	}

	if cfg.HTTPAddr == "" && cfg.TelegramToken == "" {
		log.Fatal("Nothing to run: set VOCASTAR_ADDR or TELEGRAM_BOT_TOKEN")
	}

	if err := g.Wait(); err != nil {
		log.Printf("Error: %v", err)
	}

	// Pending unlocks are applied and saved before the store closes
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	svc.Shutdown(shutdownCtx)
	log.Println("VocaStar stopped successfully")
}
