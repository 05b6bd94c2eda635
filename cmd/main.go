package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leonelquinteros/gotext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"stockwatch-telegram-bot/config"
	"stockwatch-telegram-bot/internal/database"
	"stockwatch-telegram-bot/internal/metrics"
	"stockwatch-telegram-bot/internal/scraper"
	"stockwatch-telegram-bot/internal/telegram"
	"stockwatch-telegram-bot/internal/types"
	"stockwatch-telegram-bot/internal/watcher"
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")

	err := database.InitDB(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	LoadMetricsFromDB()

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:  config.GetString("telegram_bot_token"),
		ChatID: config.GetInt64("telegram_chat_id"),
		Debug:  config.GetBool("debug"),
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	notifier := telegram.NewNotifier(bot, bot.Config.ChatID)

	categories := config.GetCategories()
	if len(categories) == 0 {
		log.Fatal("No tracked categories configured, set CATEGORIES")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(config.GetInt("check_interval_minutes")) * time.Minute
	summaryEvery := time.Duration(config.GetInt("summary_interval_hours")) * time.Hour
	store := database.Store{}

	for _, cat := range categories {
		// One client per category: the scraper's rng and pacing state
		// are not safe for concurrent cycles.
		client := scraper.NewClient(30 * time.Second)
		svc := watcher.NewService(cat, client, store, notifier, interval, summaryEvery)
		go svc.Run(ctx)
	}

	notifier.SendStartup(categories)

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToDB()
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		cancel()
		SaveMetricsToDB()
		notifier.SendShutdown(collectStats(categories))
		log.Println("Metrics saved, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting stock watch bot...")
}

func collectStats(categories []types.Category) map[string]types.CategoryStats {
	stats := make(map[string]types.CategoryStats, len(categories))
	for _, cat := range categories {
		s, err := database.GetStats(cat.Name)
		if err != nil {
			log.Errorf("Failed to collect stats for %s: %v", cat.Name, err)
			continue
		}
		stats[cat.Name] = s
	}
	return stats
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

// persistedCounters are the counter vecs whose values survive restarts
// through the sqlite metrics table. Label values are stored joined by
// "|" in the order the dto reports them (sorted by label name).
var persistedCounters = map[string]*prometheus.CounterVec{
	"cycles_total":          metrics.CyclesTotal,
	"scrape_failures_total": metrics.ScrapeFailuresTotal,
	"alerts_sent_total":     metrics.AlertsSentTotal,
}

func LoadMetricsFromDB() {
	for name, vec := range persistedCounters {
		values, err := database.GetMetricsByLabel(name)
		if err != nil {
			log.Errorf("Failed to load metric %s: %v", name, err)
			continue
		}
		for joined, value := range values {
			labels := strings.Split(joined, "|")
			counter, err := vec.GetMetricWithLabelValues(labels...)
			if err != nil {
				log.Errorf("Failed to restore metric %s[%s]: %v", name, joined, err)
				continue
			}
			counter.Add(value)
		}
	}

	log.Println("Metrics loaded from database.")
}

func SaveMetricsToDB() {
	for name, vec := range persistedCounters {
		metricChan := make(chan prometheus.Metric, 64)
		go func(v *prometheus.CounterVec) {
			v.Collect(metricChan)
			close(metricChan)
		}(vec)

		for metric := range metricChan {
			metricProto := &dto.Metric{}
			if err := metric.Write(metricProto); err != nil {
				log.Errorf("Failed to read metric %s: %v", name, err)
				continue
			}

			labels := make([]string, 0, len(metricProto.Label))
			for _, label := range metricProto.Label {
				labels = append(labels, label.GetValue())
			}

			if err := database.SaveMetric(name, strings.Join(labels, "|"), metricProto.Counter.GetValue()); err != nil {
				log.Errorf("Failed to save metric %s: %v", name, err)
			}
		}
	}

	log.Println("Metrics saved to database.")
}
