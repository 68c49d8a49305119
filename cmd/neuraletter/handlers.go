package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/neuraletter/neuraletter/internal/config"
	"github.com/neuraletter/neuraletter/internal/scheduler"
	"github.com/neuraletter/neuraletter/internal/store"
	"github.com/neuraletter/neuraletter/pkg/ai"
	"github.com/neuraletter/neuraletter/pkg/discovery"
	"github.com/neuraletter/neuraletter/pkg/enrich"
	"github.com/neuraletter/neuraletter/pkg/harvest"
	"github.com/neuraletter/neuraletter/pkg/notify"
	"github.com/neuraletter/neuraletter/pkg/relevance"
	"github.com/neuraletter/neuraletter/pkg/search"
	"github.com/neuraletter/neuraletter/pkg/server"
	"github.com/neuraletter/neuraletter/pkg/summarize"
)

func loadConfig() (*config.Config, error) {
	// .env values become env vars, which the config layer reads as
	// overrides. A missing .env is fine.
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildService(cfg *config.Config, db store.Store) *enrich.Service {
	aiClient := ai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)

	searchClient := search.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Engine, search.Locale{
		Location:     cfg.Search.Location,
		GoogleDomain: cfg.Search.GoogleDomain,
		Language:     cfg.Search.Language,
		Country:      cfg.Search.Country,
	})

	var notifier notify.Notifier
	if cfg.Email.APIURL != "" && cfg.Email.APIKey != "" {
		notifier = notify.NewEmailNotifier(cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.FromName)
	} else {
		fmt.Fprintln(os.Stderr, "email API not configured; digests disabled")
	}

	harvester := harvest.New(cfg.Harvest.Retries, cfg.Harvest.ParseTimeout(), cfg.Harvest.UserAgent)

	return enrich.NewService(enrich.Deps{
		Store:           db,
		Search:          searchClient,
		Agents:          aiClient,
		Notifier:        notifier,
		Discoverer:      discovery.New(aiClient, cfg.Pipeline.SeedURLCount),
		Harvester:       harvester,
		Filter:          relevance.New(aiClient, cfg.Pipeline.ChunkMaxChars, cfg.Pipeline.MaxRelevantURLs),
		Summarizer:      summarize.New(aiClient, cfg.Pipeline.ArticleMaxChars, cfg.Pipeline.ChunkMaxChars),
		ExtractionModel: cfg.AI.ExtractionModel,
	})
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	service := buildService(cfg, db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, service, cfg.Schedule.ParseOverdueBuffer())
	if err := sched.ScheduleFromStore(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	srv := server.New(db, service, sched, port)
	return srv.ListenAndServe()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	service := buildService(cfg, db)

	srv := server.New(db, service, nil, port)
	return srv.ListenAndServe()
}

func runCollect(topicID, mode string) error {
	if mode != "enrich" && mode != "crawl" {
		return fmt.Errorf("unknown mode %q (want enrich or crawl)", mode)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	topic, err := db.GetTopic(ctx, topicID)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %s not found", topicID)
	}

	service := buildService(cfg, db)

	var result *enrich.Result
	if mode == "crawl" {
		result = service.Crawl(ctx, topic)
	} else {
		result = service.Enrich(ctx, topic)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runTopics(user string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	var topics []store.Topic
	if user != "" {
		topics, err = db.ListTopicsByUser(ctx, user)
	} else {
		topics, err = db.ListTopics(ctx)
	}
	if err != nil {
		return err
	}

	if len(topics) == 0 {
		fmt.Println("no topics found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tFREQ(H)\tNEXT RUN")
	for _, t := range topics {
		title := "-"
		if t.Title != nil && *t.Title != "" {
			title = *t.Title
		}
		next := "-"
		if t.NextUpdateTime != nil {
			next = time.UnixMilli(*t.NextUpdateTime).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, title, t.UpdateFrequencyHours, next)
	}
	return w.Flush()
}

func runGenAgent() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	service := buildService(cfg, db)

	agent, err := service.ProvisionExtractionAgent(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("extraction agent ready: id=%s handle=%s model=%s\n",
		agent.ID, agent.AgentHandle, agent.Model)
	return nil
}
