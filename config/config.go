package config

import (
	"strings"
	"sync"

	"github.com/spf13/viper"

	"stockwatch-telegram-bot/internal/types"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("telegram_chat_id", "TELEGRAM_CHAT_ID")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("check_interval_minutes", "CHECK_INTERVAL_MINUTES")
		viper.BindEnv("summary_interval_hours", "SUMMARY_INTERVAL_HOURS")
		viper.BindEnv("categories", "CATEGORIES")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("check_interval_minutes", 5)
		viper.SetDefault("summary_interval_hours", 2)
		viper.SetDefault("categories", "men=https://www.shein.in/shein-verse-men-c-2513.html")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetInt64(key string) int64 {
	InitConfig()
	return viper.GetInt64(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

// GetCategories parses the tracked categories from a comma-separated
// list of name=url pairs.
func GetCategories() []types.Category {
	InitConfig()

	var categories []types.Category
	for _, pair := range strings.Split(viper.GetString("categories"), ",") {
		name, url, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || name == "" || url == "" {
			continue
		}
		categories = append(categories, types.Category{Name: name, URL: url})
	}
	return categories
}
