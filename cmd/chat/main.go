package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hoeteam/openchat/internal/chat"
	"github.com/hoeteam/openchat/internal/llm"
	"github.com/hoeteam/openchat/internal/models"
	"github.com/hoeteam/openchat/internal/secret"
	"github.com/hoeteam/openchat/internal/settings"
	"github.com/hoeteam/openchat/internal/storage"
	"github.com/hoeteam/openchat/internal/update"
	"github.com/hoeteam/openchat/internal/version"
	"github.com/hoeteam/openchat/pkg/config"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	// Initialize storage
	var store storage.Store
	if cfg.Storage.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using SQLite storage", zap.String("path", cfg.Storage.Path))
		store, err = storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the secret cipher for API keys at rest
	cipher, err := secret.NewCipher(cfg.Storage.KeyPath)
	if err != nil {
		logger.Fatal("Failed to initialize secret cipher", zap.Error(err))
	}

	repo := settings.NewRepository(store, cipher, logger)
	chatService := chat.NewService(llm.NewClient(cfg.Chat, logger), repo, logger)

	checker := update.NewChecker(cfg.Update, cfg.App.Version, logger)
	updates := update.NewManager(checker, store, logger)

	if err := run(chatService, repo, updates, cfg.App.Version); err != nil {
		logger.Fatal("Chat loop error", zap.Error(err))
	}
}

func run(svc *chat.Service, repo *settings.Repository, updates *update.Manager, appVersion string) error {
	ctx := context.Background()

	fmt.Printf("OpenChat %s — type a message, or /help for commands.\n", appVersion)
	notifyOnNewerRelease(ctx, updates)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := handleCommand(ctx, svc, repo, updates, line)
			if err != nil {
				fmt.Println("error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := svc.Send(ctx, line)
		if err != nil {
			if errors.Is(err, chat.ErrNoActiveModel) {
				fmt.Println("Configure a model first: /add")
				continue
			}
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(reply.Text)
	}
}

func handleCommand(ctx context.Context, svc *chat.Service, repo *settings.Repository, updates *update.Manager, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		fmt.Println(`/models          list configurations
/add             add a configuration
/use <id>        switch configuration (clears the chat)
/delete <id>     delete a configuration
/new             clear the chat
/update [chan]   check for updates (nightly|beta|stable)
/ignore <tag>    stop reminders for one release tag
/theme           toggle dark theme
/quit            exit`)
	case "/quit":
		return true, nil
	case "/new":
		svc.Clear()
	case "/models":
		return false, printModels(ctx, svc, repo)
	case "/add":
		return false, addModel(ctx, repo)
	case "/use":
		if len(fields) < 2 {
			return false, errors.New("usage: /use <id>")
		}
		return false, svc.UseModel(ctx, fields[1])
	case "/delete":
		if len(fields) < 2 {
			return false, errors.New("usage: /delete <id>")
		}
		return false, repo.DeleteModel(ctx, fields[1])
	case "/update":
		return false, checkUpdates(ctx, updates, fields)
	case "/ignore":
		if len(fields) < 2 {
			return false, errors.New("usage: /ignore <tag>")
		}
		return false, updates.IgnoreVersion(ctx, fields[1])
	case "/theme":
		dark, err := repo.DarkTheme(ctx)
		if err != nil {
			return false, err
		}
		if err := repo.SetDarkTheme(ctx, !dark); err != nil {
			return false, err
		}
		fmt.Println("dark theme:", !dark)
	default:
		fmt.Println("unknown command, try /help")
	}
	return false, nil
}

func printModels(ctx context.Context, svc *chat.Service, repo *settings.Repository) error {
	all, err := repo.AllModels(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no configurations yet, use /add")
		return nil
	}
	active, err := svc.ActiveModel(ctx)
	if err != nil {
		return err
	}
	for _, m := range all {
		marker := " "
		if active != nil && m.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s [%s] model=%s\n", marker, m.ID, m.Name, m.Provider.DisplayName(), m.ModelName)
	}
	return nil
}

func addModel(ctx context.Context, repo *settings.Repository) error {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) (string, error) {
		fmt.Printf("%s: ", label)
		value, err := reader.ReadString('\n')
		return strings.TrimSpace(value), err
	}

	name, err := prompt("name")
	if err != nil {
		return err
	}
	provider, err := prompt("provider (openai|gemini|deepseek|dashscope|claude|custom)")
	if err != nil {
		return err
	}
	apiKey, err := prompt("api key")
	if err != nil {
		return err
	}
	modelName, err := prompt("model name")
	if err != nil {
		return err
	}
	systemPrompt, err := prompt("system prompt")
	if err != nil {
		return err
	}
	customURL, err := prompt("custom endpoint (blank for default)")
	if err != nil {
		return err
	}
	appID, err := prompt("app id (dashscope only, blank to skip)")
	if err != nil {
		return err
	}

	model := models.ModelConfig{
		ID:           uuid.New().String(),
		Name:         name,
		Provider:     models.Provider(provider),
		APIKey:       apiKey,
		ModelName:    modelName,
		SystemPrompt: systemPrompt,
		CustomAPIURL: customURL,
		AppID:        appID,
	}
	if err := repo.AddOrUpdateModel(ctx, model); err != nil {
		return err
	}
	fmt.Println("saved", model.ID)
	return nil
}

func checkUpdates(ctx context.Context, updates *update.Manager, fields []string) error {
	var result *update.Result
	var err error
	if len(fields) > 1 {
		result, err = updates.CheckChannel(ctx, version.ClassifyChannel(fields[1]))
	} else {
		result, err = updates.CheckForUpdates(ctx)
	}
	if err != nil {
		return err
	}
	if result.Error != "" {
		fmt.Println("update check:", result.Error)
		return nil
	}
	if !result.HasUpdate {
		fmt.Printf("up to date (%s)\n", result.CurrentVersion)
		return nil
	}
	fmt.Printf("update available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Println("download:", updates.DownloadPageURL(result.LatestVersion, result.Channel))
	return nil
}

// notifyOnNewerRelease shows the one-time update banner, honoring the
// ignored tag and the shown flag.
func notifyOnNewerRelease(ctx context.Context, updates *update.Manager) {
	result, err := updates.CheckForUpdates(ctx)
	if err != nil || result.Error != "" || !result.HasUpdate {
		return
	}
	ignored, err := updates.IgnoredVersion(ctx)
	if err == nil && ignored == result.LatestVersion {
		return
	}
	shown, err := updates.NotificationShown(ctx)
	if err == nil && shown {
		return
	}
	fmt.Printf("A newer release is available: %s (see /update)\n", result.LatestVersion)
	updates.MarkNotificationShown(ctx)
}
