// Package cli implements the anonymizer terminal client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"resume-anonymizer/internal/anonymizer"
	"resume-anonymizer/internal/apiclient"
	"resume-anonymizer/internal/domain"
	"resume-anonymizer/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const app = "anonymizer"

// API is the part of the server API the client uses.
type API interface {
	anonymizer.SessionStore
	Upload(ctx context.Context, filename string, file io.Reader) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Download(ctx context.Context, session *domain.Session) ([]byte, error)
	Share(ctx context.Context, sessionID string) (string, error)
	CloseEditor(ctx context.Context, sessionID string) error
}

type apiKeyType struct{}
type loggerKeyType struct{}

var apiKey = apiKeyType{}
var loggerKey = loggerKeyType{}

var (
	cfgFile string

	// newAPI is replaced in tests.
	newAPI = func(server, token string, log domain.Logger) API {
		return apiclient.New(server, token, log)
	}

	// newPrompter is replaced in tests.
	newPrompter = func() Prompter { return promptUI{} }

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "Redact personal data from resumes",
		Long: `anonymizer uploads resumes to the anonymizer server, which detects personal
data in them, and lets you choose what gets blurred before downloading or
sharing the anonymized PDF. Progress is saved on the server as you go.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file with server and token keys")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "anonymizer server URL")
	rootCmd.PersistentFlags().String("token", "", "access token (or ANONYMIZER_TOKEN)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindEnv("server", "ANONYMIZER_SERVER")
	_ = viper.BindEnv("token", "ANONYMIZER_TOKEN")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the config file and attaches the logger and API client to the command context.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	}

	level, format := "info", "console"
	if viper.GetBool("debug") {
		level = "debug"
	}
	if viper.GetBool("json") {
		format = "json"
	}
	log := logger.NewLogger(level, format)

	token := viper.GetString("token")
	if token == "" {
		return errors.New("an access token is required: pass --token or set ANONYMIZER_TOKEN")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, loggerKey, log)
	ctx = context.WithValue(ctx, apiKey, newAPI(viper.GetString("server"), token, log))
	cmd.SetContext(ctx)
	return nil
}

func getAPIFromContext(ctx context.Context) API {
	if api, ok := ctx.Value(apiKey).(API); ok {
		return api
	}
	panic("api client not found in context") // set by setup
}

func getLoggerFromContext(ctx context.Context) domain.Logger {
	if log, ok := ctx.Value(loggerKey).(domain.Logger); ok {
		return log
	}
	panic("logger not found in context") // set by setup
}
