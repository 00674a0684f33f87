package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/dialogpipe/dialogpipe/internal/api"
	"github.com/dialogpipe/dialogpipe/internal/bot"
	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/messaging"
	"github.com/dialogpipe/dialogpipe/internal/recognition"
	"github.com/dialogpipe/dialogpipe/internal/store"
	"github.com/dialogpipe/dialogpipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DialogPipe state data
	DefaultStateDir = "/var/lib/dialogpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "dialogpipe.db"
	// DefaultThreshold is the default recognition confidence threshold
	DefaultThreshold = 0.7
)

// defaultFAQPairs backs the keyless knowledge base when no OpenAI key is
// configured.
var defaultFAQPairs = map[string]string{
	"return policy":  "You can return any TV within 30 days of delivery.",
	"delivery":       "Deliveries take 3 to 5 business days.",
	"opening hours":  "Our stores are open from 9am to 8pm, Monday to Saturday.",
	"warranty":       "Every TV comes with a 12 month manufacturer warranty.",
	"payment method": "We accept credit cards, debit cards and bank transfers.",
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	recognizer, kb := buildRecognition(flags)
	helper, err := recognition.NewHelper(recognizer, *flags.threshold)
	if err != nil {
		slog.Error("Failed to create recognition helper", "error", err)
		os.Exit(1)
	}

	router, err := dialog.NewRouter(
		dialog.WithRecognitionHelper(helper),
		dialog.WithKnowledgeBase(kb),
		dialog.WithBotVersion(*flags.botVersion),
	)
	if err != nil {
		slog.Error("Failed to create dialog router", "error", err)
		os.Exit(1)
	}

	b, err := bot.New(
		bot.WithStore(st),
		bot.WithRouter(router),
		bot.WithRecognitionHelper(helper),
		bot.WithKnowledgeBase(kb),
		bot.WithBotUserID(*flags.botUserID),
	)
	if err != nil {
		slog.Error("Failed to create bot", "error", err)
		os.Exit(1)
	}

	apiOpts := []api.Option{
		api.WithBot(b),
		api.WithStore(st),
		api.WithAddr(*flags.apiAddr),
	}
	if svc := buildMessaging(); svc != nil {
		apiOpts = append(apiOpts, api.WithMessaging(svc))
	}

	server, err := api.NewServer(apiOpts...)
	if err != nil {
		slog.Error("Failed to create API server", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping DialogPipe", "api_addr", *flags.apiAddr, "bot_version", *flags.botVersion)
	if err := server.Run(); err != nil {
		slog.Error("DialogPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DialogPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	Threshold   float64
	BotVersion  float64
	BotUserID   string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	apiAddr    *string
	threshold  *float64
	botVersion *float64
	botUserID  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("DIALOGPIPE_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		BotUserID:   os.Getenv("BOT_USER_ID"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DIALOGPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	config.Threshold = util.ParseFloatEnv("RECOGNIZER_THRESHOLD", DefaultThreshold)
	config.BotVersion = util.ParseFloatEnv("BOT_VERSION", dialog.DefaultBotVersion)
	return config
}

// parseCommandLineFlags parses command line flags with environment fallbacks
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "Directory for DialogPipe state data"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "Database DSN (PostgreSQL URL or SQLite file path)"),
		openaiKey:  flag.String("openai-key", config.OpenAIKey, "OpenAI API key for recognition and FAQ answering"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server listen address"),
		threshold:  flag.Float64("threshold", config.Threshold, "Recognition confidence threshold"),
		botVersion: flag.Float64("bot-version", config.BotVersion, "Bot version used for per-user feature gates"),
		botUserID:  flag.String("bot-user-id", config.BotUserID, "The bot's own member id"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when SQLite will be used
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	return os.MkdirAll(*flags.stateDir, 0o755)
}

// buildStore opens the configured persistence backend
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildRecognition selects the OpenAI recognizer and knowledge base when a key
// is configured, and the static keyword tables otherwise
func buildRecognition(flags Flags) (recognition.Recognizer, recognition.KnowledgeBase) {
	if *flags.openaiKey != "" {
		recognizer, err := recognition.NewOpenAIRecognizer(recognition.WithAPIKey(*flags.openaiKey))
		if err == nil {
			kb, kbErr := recognition.NewOpenAIKnowledgeBase(recognition.WithAPIKey(*flags.openaiKey))
			if kbErr == nil {
				slog.Info("Using OpenAI recognition")
				return recognizer, kb
			}
			slog.Warn("OpenAI knowledge base unavailable, falling back to static", "error", kbErr)
		} else {
			slog.Warn("OpenAI recognizer unavailable, falling back to static", "error", err)
		}
	}
	slog.Info("Using static keyword recognition")
	return recognition.NewStaticRecognizer(), recognition.NewStaticKnowledgeBase(defaultFAQPairs)
}

// buildMessaging creates the Twilio channel when credentials are configured
func buildMessaging() messaging.Service {
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" {
		return nil
	}
	svc, err := messaging.NewTwilioService()
	if err != nil {
		slog.Warn("Twilio messaging unavailable", "error", err)
		return nil
	}
	slog.Info("Twilio messaging enabled")
	return svc
}
