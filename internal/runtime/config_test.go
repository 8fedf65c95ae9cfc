package runtime

import (
	"errors"
	"reflect"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	shipiterr "github.com/familyevents/shipit/errors"
)

var _ = Describe("Viper to Runtime Config", func() {
	var baseViperCfg *viper.Viper
	var expectedRuntimeCfg *Config
	BeforeEach(func() {
		baseViperCfg = viper.New()
		expectedRuntimeCfg = &Config{}

		baseViperCfg.Set("branch", "main")
		expectedRuntimeCfg.Branch = "main"
		baseViperCfg.Set("logfile", "logfile")
		expectedRuntimeCfg.LogFile = "logfile"
		baseViperCfg.Set("artifacts", "artifacts")
		expectedRuntimeCfg.Artifacts = "artifacts"
		baseViperCfg.Set("format", "json")
		expectedRuntimeCfg.ResponseFormat = "json"
		baseViperCfg.Set("secrets_dir", "/run/secrets")
		expectedRuntimeCfg.SecretsDir = "/run/secrets"
		baseViperCfg.Set("history_db", "history.db")
		expectedRuntimeCfg.HistoryDB = "history.db"
		baseViperCfg.Set("lock_ttl", "30m")
		expectedRuntimeCfg.LockTTL = 30 * time.Minute

		baseViperCfg.Set("registry_server", "https://plannerregistry.azurecr.io/")
		expectedRuntimeCfg.RegistryServer = "plannerregistry.azurecr.io"
		baseViperCfg.Set("repository", "planner")
		expectedRuntimeCfg.Repository = "planner"
		baseViperCfg.Set("tag", "latest")
		expectedRuntimeCfg.Tag = "latest"
		baseViperCfg.Set("context", "app")
		expectedRuntimeCfg.ContextDir = "app"
		baseViperCfg.Set("dockerfile", "Dockerfile")
		expectedRuntimeCfg.Dockerfile = "Dockerfile"
		baseViperCfg.Set("manifest", "requirements.txt")
		expectedRuntimeCfg.Manifest = "requirements.txt"
		baseViperCfg.Set("platform", "arm64")
		expectedRuntimeCfg.Platform = "arm64"
		baseViperCfg.Set("docker_config", "/home/ci/.docker/config.json")
		expectedRuntimeCfg.DockerConfig = "/home/ci/.docker/config.json"
		baseViperCfg.Set("registry_username_secret", "ACR_USER")
		expectedRuntimeCfg.RegistryUsernameSecret = "ACR_USER"
		baseViperCfg.Set("registry_password_secret", "ACR_PASS")
		expectedRuntimeCfg.RegistryPasswordSecret = "ACR_PASS"
		baseViperCfg.Set("insecure", true)
		expectedRuntimeCfg.Insecure = true

		baseViperCfg.Set("target", "planner-bot")
		expectedRuntimeCfg.Target = "planner-bot"
		baseViperCfg.Set("resource_group", "family-events")
		expectedRuntimeCfg.ResourceGroup = "family-events"
		baseViperCfg.Set("cloud_credentials_secret", "AZURE_CREDENTIALS")
		expectedRuntimeCfg.CloudCredentialsSecret = "AZURE_CREDENTIALS"
		baseViperCfg.Set("management_endpoint", "https://management.azure.com/")
		expectedRuntimeCfg.ManagementEndpoint = "https://management.azure.com"
		baseViperCfg.Set("authority_host", "https://login.microsoftonline.com")
		expectedRuntimeCfg.AuthorityHost = "https://login.microsoftonline.com"
		baseViperCfg.Set("notify_token_secret", "TELEGRAM_TOKEN")
		expectedRuntimeCfg.NotifyTokenSecret = "TELEGRAM_TOKEN"
		baseViperCfg.Set("notify_chat_id", "-100123")
		expectedRuntimeCfg.NotifyChatID = "-100123"

		baseViperCfg.Set("webhook_secret_name", "WEBHOOK_SECRET")
		expectedRuntimeCfg.WebhookSecretName = "WEBHOOK_SECRET"
		baseViperCfg.Set("listen", ":8080")
		expectedRuntimeCfg.Listen = ":8080"
		baseViperCfg.Set("git_token_secret", "GIT_TOKEN")
		expectedRuntimeCfg.GitTokenSecret = "GIT_TOKEN"
	})

	Context("With values in a viper config", func() {
		It("should populate a runtime.Config with image, target and server values", func() {
			cfg, err := NewConfigFrom(*baseViperCfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(*cfg).To(BeEquivalentTo(*expectedRuntimeCfg))
		})

		It("should validate", func() {
			cfg, err := NewConfigFrom(*baseViperCfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should build the image reference from registry, repository and tag", func() {
			cfg, err := NewConfigFrom(*baseViperCfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.ImageReference()).To(Equal("plannerregistry.azurecr.io/planner:latest"))
		})
	})

	Context("With required values missing", func() {
		It("should name every missing key", func() {
			baseViperCfg.Set("target", "")
			baseViperCfg.Set("registry_server", "")
			cfg, err := NewConfigFrom(*baseViperCfg)
			Expect(err).ToNot(HaveOccurred())

			err = cfg.Validate()
			Expect(errors.Is(err, shipiterr.ErrInvalidConfig)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("target"))
			Expect(err.Error()).To(ContainSubstring("registry_server"))
		})
	})

	Context("With malformed values", func() {
		It("should reject an unknown report format", func() {
			baseViperCfg.Set("format", "junitxml")
			cfg, _ := NewConfigFrom(*baseViperCfg)
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("format")))
		})

		It("should reject a management endpoint that is not a URL", func() {
			baseViperCfg.Set("management_endpoint", "management")
			cfg, _ := NewConfigFrom(*baseViperCfg)
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("management_endpoint")))
		})
	})

	It("should only have 28 struct keys for tests to be valid", func() {
		// If this test fails, it means a developer has added or removed
		// keys from runtime.Config, and so these tests may no longer be
		// accurate in confirming that the derived configuration from viper
		// matches.
		keys := reflect.TypeOf(Config{}).NumField()
		Expect(keys).To(Equal(28))
	})
})
