package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/core"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/logutil"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/ownerlock"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/locale"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/orchestrator"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/providers/gemini"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/router"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/telegram"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/tools/builtin"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger)
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringSlice("gemini-api-key", nil, "Gemini API key (repeatable for rotation).")
	_ = viper.BindPFlag("telegram.bot_token", cmd.Flags().Lookup("telegram-bot-token"))
	_ = viper.BindPFlag("gemini.api_keys", cmd.Flags().Lookup("gemini-api-key"))

	return cmd
}

func serve(ctx context.Context, logger *slog.Logger) error {
	token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
	if token == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	apiKeys := viper.GetStringSlice("gemini.api_keys")
	if len(apiKeys) == 0 {
		return fmt.Errorf("gemini.api_keys is required")
	}

	stateDir := viper.GetString("state.dir")
	cacheDir := filepath.Join(stateDir, "cache")

	store := session.NewStore(filepath.Join(stateDir, "sessions"), logger)
	modelRouter, err := router.New(filepath.Join(stateDir, "models.json"), map[string]string{
		router.CapabilityChat:  viper.GetString("models.chat"),
		router.CapabilityImage: viper.GetString("models.image"),
		router.CapabilityVideo: viper.GetString("models.video"),
	}, logger)
	if err != nil {
		return err
	}

	client := gemini.New(viper.GetString("gemini.base_url"), apiKeys)
	registry := buildRegistry(client, modelRouter, cacheDir)

	perms := tools.NewPermissions(filepath.Join(stateDir, "permissions.json"))

	botAPI := telegram.NewAPI(nil, viper.GetString("telegram.base_url"), token)
	orch := orchestrator.New(store, modelRouter, registry, client, ownerlock.NewSet(),
		orchestrator.Config{
			MaxToolRounds:   viper.GetInt("agent.max_tool_rounds"),
			BackendRetries:  viper.GetInt("agent.backend_retries"),
			RetryDelay:      viper.GetDuration("agent.retry_delay"),
			ContextMaxTurns: viper.GetInt("agent.context_max_turns"),
			ContextMaxBytes: viper.GetInt("agent.context_max_bytes"),
			Prices:          pricesFromViper(),
		},
		orchestrator.WithLogger(logger),
		orchestrator.WithPermissions(perms),
		orchestrator.WithToolStatusHook(func(owner int64, toolName string) {
			// Private chats: the owner ID is the chat ID.
			_ = botAPI.SendChatAction(context.Background(), owner, "typing")
		}),
	)

	admins := viperInt64Slice("telegram.admin_ids")
	c := core.New(store, modelRouter, orch, admins, logger)

	bundle, err := locale.Load(viper.GetString("locale"))
	if err != nil {
		return err
	}

	authorized := viperInt64Slice("telegram.authorized_ids")
	if len(authorized) == 0 {
		authorized = admins
	}
	runtime := telegram.NewRuntime(botAPI, c, bundle, telegram.Config{
		Token:        token,
		BaseURL:      viper.GetString("telegram.base_url"),
		AllowedUsers: authorized,
		PollTimeout:  viper.GetDuration("telegram.poll_timeout"),
		DownloadDir:  filepath.Join(cacheDir, "incoming"),
		MaxFileBytes: viper.GetInt64("telegram.max_file_bytes"),
	}, logger)

	logger.Info("serve_started", "state_dir", stateDir, "admins", len(admins))
	return runtime.Run(ctx)
}

func buildRegistry(client *gemini.Client, modelRouter *router.Router, cacheDir string) *tools.Registry {
	registry := tools.NewRegistry()
	if viper.GetBool("tools.web_search.enabled") {
		registry.Register(builtin.NewWebSearchTool("", 0, viper.GetInt("tools.web_search.max_results")))
	}
	if viper.GetBool("tools.download.enabled") {
		registry.Register(builtin.NewDownloadMediaTool(filepath.Join(cacheDir, "downloads"), 0))
	}
	if viper.GetBool("tools.summarize.enabled") {
		registry.Register(builtin.NewSummarizeVideoTool(filepath.Join(cacheDir, "subs"), client, modelRouter))
	}
	if viper.GetBool("tools.image.enabled") {
		registry.Register(builtin.NewGenerateImageTool(filepath.Join(cacheDir, "images"), client, modelRouter))
	}
	if viper.GetBool("tools.video.enabled") {
		registry.Register(builtin.NewGenerateVideoTool(filepath.Join(cacheDir, "videos"), client, modelRouter))
	}
	return registry
}

func pricesFromViper() map[string]orchestrator.Price {
	prices := make(map[string]orchestrator.Price)
	for model, v := range viper.GetStringMap("prices") {
		prices[model] = orchestrator.Price{
			Input:  priceField(v, "input"),
			Output: priceField(v, "output"),
		}
	}
	return prices
}

func priceField(v any, field string) float64 {
	switch m := v.(type) {
	case map[string]float64:
		return m[field]
	case map[string]any:
		switch n := m[field].(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return 0
}

func viperInt64Slice(key string) []int64 {
	raw := viper.GetIntSlice(key)
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		out = append(out, int64(v))
	}
	return out
}
