package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vbonduro/wardrobe/internal/addflow"
	"github.com/vbonduro/wardrobe/internal/auth"
	"github.com/vbonduro/wardrobe/internal/bgremove"
	"github.com/vbonduro/wardrobe/internal/bgremove/removebg"
	"github.com/vbonduro/wardrobe/internal/closet"
	"github.com/vbonduro/wardrobe/internal/config"
	"github.com/vbonduro/wardrobe/internal/db"
	"github.com/vbonduro/wardrobe/internal/domain"
	"github.com/vbonduro/wardrobe/internal/photostore/local"
	"github.com/vbonduro/wardrobe/internal/service"
	"github.com/vbonduro/wardrobe/internal/shuffle"
	"github.com/vbonduro/wardrobe/internal/store"
	"github.com/vbonduro/wardrobe/internal/vision"
	claudevision "github.com/vbonduro/wardrobe/internal/vision/claude"
	ollamavision "github.com/vbonduro/wardrobe/internal/vision/ollama"
	"github.com/vbonduro/wardrobe/internal/web"
)

// testModeSecret signs tokens when WARDROBE_TEST_MODE=1 and no JWT_SECRET is set.
const testModeSecret = "wardrobe-test-mode"

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	photos, err := local.NewLocalPhotoStore(cfg.PhotoPath)
	if err != nil {
		return fmt.Errorf("failed to initialize photo store: %w", err)
	}

	users := store.NewUserStore(database)
	clothing := store.NewClothingStore(database)
	favorites := store.NewFavoriteStore(database)
	taxonomy := domain.DefaultTaxonomy

	secret := cfg.JWTSecret
	if secret == "" && cfg.TestMode {
		logger.Warn("JWT_SECRET not set; using the test mode secret")
		secret = testModeSecret
	}
	authSvc := auth.NewService(users, auth.Config{Secret: secret}, logger)

	pipeline := addflow.NewPipeline(newRemover(cfg, logger), newClassifier(cfg, taxonomy, logger), photos, logger)

	svc := service.NewWardrobeService(service.Options{
		Taxonomy: taxonomy,
		Remote: func(ownerID int64) closet.RecordStore {
			return &store.OwnerRecords{Clothing: clothing, Favorites: favorites, OwnerID: ownerID}
		},
		CacheDir:  cfg.CacheDir,
		Photos:    photos,
		Pipeline:  pipeline,
		Images:    clothing,
		NewEngine: newEngineFactory(cfg, taxonomy),
		FlowTTL:   cfg.FlowTTL,
	}, logger)
	defer svc.Close()

	unsubscribe := authSvc.Subscribe(svc.HandleSession)
	defer unsubscribe()

	server := web.NewServer(svc, authSvc, logger)
	return server.ListenAndServe(ctx, cfg.ListenAddr)
}

func newRemover(cfg *config.Config, logger *slog.Logger) bgremove.Remover {
	if cfg.RemoveBGAPIKey == "" {
		logger.Warn("REMOVEBG_API_KEY not set; photos are stored without background removal")
		return bgremove.Passthrough{}
	}
	logger.Info("using remove.bg background removal", "url", cfg.RemoveBGURL)
	return removebg.New(cfg.RemoveBGAPIKey, cfg.RemoveBGURL)
}

func newClassifier(cfg *config.Config, taxonomy domain.Taxonomy, logger *slog.Logger) vision.Classifier {
	switch cfg.VisionBackend {
	case "claude":
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeClassifier(cfg.ClaudeAPIKey, cfg.ClaudeModel, taxonomy)
	case "ollama":
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaClassifier(cfg.OllamaHost, cfg.OllamaModel, taxonomy)
	default:
		logger.Info("category suggestions disabled")
		return nil
	}
}

// newEngineFactory seeds every user's engine the same way when SHUFFLE_SEED
// is set so shuffles are reproducible.
func newEngineFactory(cfg *config.Config, taxonomy domain.Taxonomy) func() *shuffle.Engine {
	if cfg.ShuffleSeed != nil {
		seed := *cfg.ShuffleSeed
		return func() *shuffle.Engine { return shuffle.NewSeededEngine(taxonomy, seed) }
	}
	return nil
}
