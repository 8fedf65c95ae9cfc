// Package cmd implements the command-line interface for shipit.
package cmd

import (
	"context"
	"io"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	spfviper "github.com/spf13/viper"

	"github.com/familyevents/shipit/internal/cli"
	"github.com/familyevents/shipit/internal/runtime"
	"github.com/familyevents/shipit/internal/viper"
	"github.com/familyevents/shipit/version"
)

var configFileUsed bool

func init() {
	cobra.OnInitialize(func() { initConfig(viper.Instance()) })
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:              "shipit",
		Short:            "Build, publish and deploy the planner bot.",
		Long:             "A continuous-deployment pipeline that builds the application image, pushes it to the registry and redeploys the web app on every push to the integration branch.",
		Version:          version.Version.String(),
		SilenceErrors:    true,
		PersistentPreRun: preRunConfig,
	}

	viper := viper.Instance()
	flags := rootCmd.PersistentFlags()

	flags.String("logfile", "", "Where the execution logfile will be written. (env: SHIPIT_LOGFILE)")
	_ = viper.BindPFlag("logfile", flags.Lookup("logfile"))

	flags.String("loglevel", "", "The verbosity of shipit itself. Ex. warn, debug, trace, info, error. (env: SHIPIT_LOGLEVEL)")
	_ = viper.BindPFlag("loglevel", flags.Lookup("loglevel"))

	flags.String("secrets-dir", "", "Directory holding one file per secret, consulted after the environment. (env: SHIPIT_SECRETS_DIR)")
	_ = viper.BindPFlag("secrets_dir", flags.Lookup("secrets-dir"))

	flags.String("history-db", "", "Path of the run history database. (env: SHIPIT_HISTORY_DB)")
	_ = viper.BindPFlag("history_db", flags.Lookup("history-db"))

	flags.String("format", "", "Run report format: text, json or yaml. (env: SHIPIT_FORMAT)")
	_ = viper.BindPFlag("format", flags.Lookup("format"))

	rootCmd.AddCommand(runCmd(cli.RunPipeline))
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func Execute() error {
	return rootCmd().ExecuteContext(context.Background())
}

func initConfig(v *spfviper.Viper) {
	// set up ENV var support
	v.SetEnvPrefix(viper.EnvPrefix)
	v.AutomaticEnv()

	// set up optional config file support
	v.SetConfigName("shipit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	configFileUsed = true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(spfviper.ConfigFileNotFoundError); ok {
			configFileUsed = false
		}
	}

	v.SetDefault("logfile", runtime.DefaultLogFile)
	v.SetDefault("loglevel", runtime.DefaultLogLevel)
	v.SetDefault("artifacts", runtime.DefaultArtifactsDir)
	v.SetDefault("format", runtime.DefaultResponseFormat)
	v.SetDefault("history_db", runtime.DefaultHistoryDB)
	v.SetDefault("lock_ttl", runtime.DefaultLockTTL)

	// Image defaults
	v.SetDefault("branch", runtime.DefaultBranch)
	v.SetDefault("tag", runtime.DefaultTag)
	v.SetDefault("context", runtime.DefaultContextDir)
	v.SetDefault("dockerfile", runtime.DefaultDockerfile)
	v.SetDefault("manifest", runtime.DefaultManifest)
	v.SetDefault("platform", runtime.DefaultPlatform)
	v.SetDefault("registry_username_secret", runtime.DefaultRegistryUsernameSecret)
	v.SetDefault("registry_password_secret", runtime.DefaultRegistryPasswordSecret)

	// Deployment target defaults
	v.SetDefault("cloud_credentials_secret", runtime.DefaultCloudCredentialsSecret)
	v.SetDefault("management_endpoint", runtime.DefaultManagementEndpoint)
	v.SetDefault("authority_host", runtime.DefaultAuthorityHost)

	// Server defaults
	v.SetDefault("webhook_secret_name", runtime.DefaultWebhookSecretName)
	v.SetDefault("listen", runtime.DefaultListenAddress)
	v.SetDefault("git_token_secret", runtime.DefaultGitTokenSecret)
}

// preRunConfig is used by cobra.PreRun in all non-root commands to set up
// logging.
func preRunConfig(cmd *cobra.Command, args []string) {
	viper := viper.Instance()
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	logname := viper.GetString("logfile")
	logFile, err := os.OpenFile(logname, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err == nil {
		mw := io.MultiWriter(os.Stderr, logFile)
		l.SetOutput(mw)
	} else {
		l.Infof("Failed to log to file, using default stderr")
	}
	if ll, err := logrus.ParseLevel(viper.GetString("loglevel")); err == nil {
		l.SetLevel(ll)
	}
	// internal/cli logs through the standard logger
	logrus.SetOutput(l.Out)
	logrus.SetLevel(l.GetLevel())
	logrus.SetFormatter(l.Formatter)

	if !configFileUsed {
		l.Debug("config file not found, proceeding without it")
	}

	logger := logrusr.New(l)
	ctx := logr.NewContext(cmd.Context(), logger)
	cmd.SetContext(ctx)
}
