// Command chat-tail prints the history of a channel or conversation and
// follows its live events.
package main

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"discord-chat/internal/feed"
	"discord-chat/internal/logger"
	"discord-chat/internal/models"
)

const (
	apiFlag      = "api"
	wsFlag       = "ws"
	tokenFlag    = "token"
	olderFlag    = "older"
	timeoutFlag  = "timeout"
	logLevelFlag = "log-level"
	refreshFlag  = "refresh-on-reconnect"
)

var rootCmd = &cobra.Command{
	Use:   "chat-tail <channel|conversation> <id>",
	Short: "Follows the messages of one chat.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.InitWithWriter(os.Stderr, viper.GetString(logLevelFlag))

		chat, err := parseChat(args[0], args[1])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return tail(ctx, chat, newPrinter(cmd.OutOrStdout()))
	},
	SilenceUsage: true,
}

// tail prints the newest page plus the requested older pages as one batch,
// then follows live events until ctx ends.
func tail(ctx context.Context, chat models.ChatRef, p *printer) error {
	token := viper.GetString(tokenFlag)
	f := feed.New(feed.Config{
		Chat:    chat,
		Fetcher: feed.NewHTTPFetcher(viper.GetString(apiFlag), token, viper.GetDuration(timeoutFlag)),
		Live: feed.LiveConfig{
			URL:   viper.GetString(wsFlag),
			Token: token,
		},
		RefreshOnReconnect: viper.GetBool(refreshFlag),
		OnChange:           p.Render,
	})

	p.Hold()
	dispose, err := f.Open(ctx)
	if dispose != nil {
		defer dispose()
	}
	if err != nil {
		p.Release()
		if feed.IsAuthError(err) {
			return fmt.Errorf("access to %s denied: %w", chat, err)
		}
		return err
	}

	for i := 0; i < viper.GetInt(olderFlag) && f.Snapshot().HasMoreOlder; i++ {
		if err := f.LoadOlder(ctx); err != nil {
			log.Warn("older page failed", "err", err)
			break
		}
	}
	p.Release()

	<-ctx.Done()
	return nil
}

func parseChat(kind, rawID string) (models.ChatRef, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return models.ChatRef{}, fmt.Errorf("invalid chat id %q", rawID)
	}
	switch k := models.ChatKind(strings.ToLower(kind)); k {
	case models.ChatKindChannel, models.ChatKindConversation:
		return models.ChatRef{Kind: k, ID: id}, nil
	default:
		return models.ChatRef{}, fmt.Errorf("unknown chat kind %q", kind)
	}
}

func bindFlag(name string) {
	if err := viper.BindPFlag(name, rootCmd.Flags().Lookup(name)); err != nil {
		panic(err)
	}
}

func init() {
	viper.SetEnvPrefix("CHAT_TAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.Flags().String(apiFlag, "http://localhost:8083", "Base URL of the chat API.")
	bindFlag(apiFlag)
	rootCmd.Flags().String(wsFlag, "ws://localhost:8083/ws/chats", "Websocket base URL; empty disables live events.")
	bindFlag(wsFlag)
	rootCmd.Flags().String(tokenFlag, "", "Bearer token.")
	bindFlag(tokenFlag)
	rootCmd.Flags().Int(olderFlag, 0, "Older pages to load after the newest one.")
	bindFlag(olderFlag)
	rootCmd.Flags().Duration(timeoutFlag, 10*time.Second, "Timeout of each history request.")
	bindFlag(timeoutFlag)
	rootCmd.Flags().String(logLevelFlag, "warn", "Log level written to stderr.")
	bindFlag(logLevelFlag)
	rootCmd.Flags().Bool(refreshFlag, true, "Reload the newest page after the live channel reconnects.")
	bindFlag(refreshFlag)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
