package runtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/option"
)

// Config contains configuration details for running shipit.
type Config struct {
	Branch string `validate:"required"`
	// Image
	RegistryServer string `validate:"required"`
	Repository     string `validate:"required"`
	Tag            string `validate:"required"`
	ContextDir     string `validate:"required"`
	Dockerfile     string `validate:"required"`
	Manifest       string
	Platform       string `validate:"required"`
	// Registry access
	DockerConfig           string
	RegistryUsernameSecret string
	RegistryPasswordSecret string
	Insecure               bool
	// Deployment target
	Target                 string `validate:"required"`
	ResourceGroup          string `validate:"required"`
	CloudCredentialsSecret string `validate:"required"`
	ManagementEndpoint     string `validate:"required,url"`
	AuthorityHost          string `validate:"required,url"`
	// Run bookkeeping
	SecretsDir        string
	HistoryDB         string `validate:"required"`
	LockTTL           time.Duration
	Artifacts         string
	LogFile           string
	ResponseFormat    string `validate:"omitempty,oneof=text json yaml"`
	NotifyTokenSecret string
	NotifyChatID      string
	// Server mode
	WebhookSecretName string
	Listen            string
	GitTokenSecret    string
}

// ReadOnly returns an uneditable configuration.
func (c *Config) ReadOnly() *ReadOnlyConfig {
	return &ReadOnlyConfig{
		cfg: *c,
	}
}

// NewConfigFrom will return a runtime.Config based on the stored inputs in
// the provided viper.Viper. The result is not validated; see Validate.
func NewConfigFrom(vcfg viper.Viper) (*Config, error) {
	cfg := Config{}
	cfg.Branch = vcfg.GetString("branch")
	cfg.LogFile = vcfg.GetString("logfile")
	cfg.Artifacts = vcfg.GetString("artifacts")
	cfg.ResponseFormat = vcfg.GetString("format")
	cfg.SecretsDir = vcfg.GetString("secrets_dir")
	cfg.HistoryDB = vcfg.GetString("history_db")
	cfg.LockTTL = vcfg.GetDuration("lock_ttl")
	cfg.storeImageConfiguration(vcfg)
	cfg.storeTargetConfiguration(vcfg)
	cfg.storeServerConfiguration(vcfg)
	return &cfg, nil
}

// storeImageConfiguration reads build and registry config items in viper,
// normalizes them, and stores them in Config.
func (c *Config) storeImageConfiguration(vcfg viper.Viper) {
	c.RegistryServer = normalizeRegistry(vcfg.GetString("registry_server"))
	c.Repository = strings.Trim(vcfg.GetString("repository"), "/")
	c.Tag = vcfg.GetString("tag")
	c.ContextDir = vcfg.GetString("context")
	c.Dockerfile = vcfg.GetString("dockerfile")
	c.Manifest = vcfg.GetString("manifest")
	c.Platform = vcfg.GetString("platform")
	c.DockerConfig = vcfg.GetString("docker_config")
	c.RegistryUsernameSecret = vcfg.GetString("registry_username_secret")
	c.RegistryPasswordSecret = vcfg.GetString("registry_password_secret")
	c.Insecure = vcfg.GetBool("insecure")
}

// storeTargetConfiguration reads deployment target config items in viper
// and stores them in Config.
func (c *Config) storeTargetConfiguration(vcfg viper.Viper) {
	c.Target = vcfg.GetString("target")
	c.ResourceGroup = vcfg.GetString("resource_group")
	c.CloudCredentialsSecret = vcfg.GetString("cloud_credentials_secret")
	c.ManagementEndpoint = strings.TrimSuffix(vcfg.GetString("management_endpoint"), "/")
	c.AuthorityHost = strings.TrimSuffix(vcfg.GetString("authority_host"), "/")
	c.NotifyTokenSecret = vcfg.GetString("notify_token_secret")
	c.NotifyChatID = vcfg.GetString("notify_chat_id")
}

// storeServerConfiguration reads webhook server config items in viper and
// stores them in Config.
func (c *Config) storeServerConfiguration(vcfg viper.Viper) {
	c.WebhookSecretName = vcfg.GetString("webhook_secret_name")
	c.Listen = vcfg.GetString("listen")
	c.GitTokenSecret = vcfg.GetString("git_token_secret")
}

// normalizeRegistry strips a scheme and trailing slash so the value can be
// used as the host part of an image reference.
func normalizeRegistry(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimSuffix(s, "/")
}

// ImageReference is the single reference built, pushed and deployed by a
// run.
func (c *Config) ImageReference() string {
	return fmt.Sprintf("%s/%s:%s", c.RegistryServer, c.Repository, c.Tag)
}

// Validate reports every required field that is missing or malformed. The
// returned error wraps errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shipiterr.ErrInvalidConfig, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", configKeys[fe.Field()], fe.Tag()))
	}
	return fmt.Errorf("%w: %s", shipiterr.ErrInvalidConfig, strings.Join(problems, ", "))
}

// configKeys maps Config fields to the configuration keys users set.
var configKeys = map[string]string{
	"Branch":                 "branch",
	"RegistryServer":         "registry_server",
	"Repository":             "repository",
	"Tag":                    "tag",
	"ContextDir":             "context",
	"Dockerfile":             "dockerfile",
	"Platform":               "platform",
	"Target":                 "target",
	"ResourceGroup":          "resource_group",
	"CloudCredentialsSecret": "cloud_credentials_secret",
	"ManagementEndpoint":     "management_endpoint",
	"AuthorityHost":          "authority_host",
	"HistoryDB":              "history_db",
	"ResponseFormat":         "format",
}

// This is to satisfy the CraneConfig interface
func (c *Config) CraneDockerConfig() string {
	return c.DockerConfig
}

func (c *Config) CranePlatform() string {
	return c.Platform
}

func (c *Config) CraneInsecure() bool {
	return c.Insecure
}

var _ option.CraneConfig = &Config{}
