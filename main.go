package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/quizbot/internal/bot"
	"github.com/example/quizbot/internal/config"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/excel"
	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/internal/scheduler"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "quizbot",
	Short:         "Telegram bot running timed multiple-choice tests",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (default)",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Load questions into the question bank",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var initDBCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Printf("Schema ready in %s database", cfg.DatabaseDriver)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file (ignored if missing)")
	importCmd.Flags().String("sheet", "", "Sheet to read from an .xlsx file (first sheet by default)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(initDBCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.Load(envFile)
}

func openStore(cfg *config.Config) (*sqlx.DB, *database.Store, error) {
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, database.NewStore(db), nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	api.Debug = cfg.Debug
	log.Printf("Authorized on account %s", api.Self.UserName)

	engine := quiz.NewEngine(cfg.Quiz, store, bot.NewTransport(api))
	defer engine.Close()

	sweeper := scheduler.New(engine, cfg.SweepInterval)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	botCfg := bot.DefaultConfig()
	botCfg.AdminUserIDs = cfg.AdminUserIDs
	botCfg.ImportRoles = bot.ImportRoles(cfg.Quiz.Roles, cfg.Quiz.FallbackRole)

	log.Println("Bot started. Press Ctrl+C to stop.")
	err = bot.New(api, engine, store, botCfg).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("Bot stopped successfully")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sheet, _ := cmd.Flags().GetString("sheet")

	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	importCfg := excel.DefaultImportConfig()
	importCfg.FilePath = args[0]
	importCfg.SheetName = sheet
	importCfg.Roles = bot.ImportRoles(cfg.Quiz.Roles, cfg.Quiz.FallbackRole)

	result, err := excel.ImportQuestions(cmd.Context(), store, importCfg)
	if result != nil {
		for _, e := range result.Errors {
			log.Println(e)
		}
	}
	if err != nil {
		return err
	}

	total, err := store.CountQuestions(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d rows: %d created, %d skipped, %d errors. %d questions in the bank.\n",
		result.TotalProcessed, result.Created, result.Skipped, len(result.Errors), total)
	return nil
}
