package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	stateDir := filepath.Join(home, ".gemini-userbot")

	viper.SetDefault("state.dir", stateDir)
	viper.SetDefault("locale", "en_US")

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	viper.SetDefault("agent.max_tool_rounds", 5)
	viper.SetDefault("agent.backend_retries", 2)
	viper.SetDefault("agent.retry_delay", "2s")
	viper.SetDefault("agent.context_max_turns", 200)
	viper.SetDefault("agent.context_max_bytes", 150_000)

	viper.SetDefault("models.chat", "gemini-2.5-pro")
	viper.SetDefault("models.image", "imagen-4.0-generate-preview-06-06")
	viper.SetDefault("models.video", "veo-3.0-generate-preview")

	viper.SetDefault("gemini.base_url", "")
	viper.SetDefault("gemini.api_keys", []string{})

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", "")
	viper.SetDefault("telegram.admin_ids", []int64{})
	viper.SetDefault("telegram.authorized_ids", []int64{})
	viper.SetDefault("telegram.poll_timeout", "30s")
	viper.SetDefault("telegram.max_file_bytes", int64(20*1024*1024))

	viper.SetDefault("tools.web_search.enabled", true)
	viper.SetDefault("tools.web_search.max_results", 5)
	viper.SetDefault("tools.download.enabled", true)
	viper.SetDefault("tools.summarize.enabled", true)
	viper.SetDefault("tools.image.enabled", true)
	viper.SetDefault("tools.video.enabled", false)

	// Per-million-token prices used for session cost accounting. Set as a
	// whole map because model identifiers contain dots.
	viper.SetDefault("prices", map[string]map[string]float64{
		"gemini-2.5-pro":   {"input": 1.25, "output": 10.0},
		"gemini-2.5-flash": {"input": 0.30, "output": 2.50},
	})
}
