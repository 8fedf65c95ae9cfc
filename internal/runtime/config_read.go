package runtime

import (
	"time"

	"github.com/familyevents/shipit/internal/config"
)

// ensure ReadOnlyConfig always implements config.Config
var _ config.Config = &ReadOnlyConfig{}

// ReadOnlyConfig is a Config that cannot be modified.
type ReadOnlyConfig struct {
	cfg Config
}

func (ro *ReadOnlyConfig) Branch() string {
	return ro.cfg.Branch
}

func (ro *ReadOnlyConfig) ResponseFormat() string {
	return ro.cfg.ResponseFormat
}

func (ro *ReadOnlyConfig) LogFile() string {
	return ro.cfg.LogFile
}

func (ro *ReadOnlyConfig) Artifacts() string {
	return ro.cfg.Artifacts
}

func (ro *ReadOnlyConfig) SecretsDir() string {
	return ro.cfg.SecretsDir
}

func (ro *ReadOnlyConfig) HistoryDB() string {
	return ro.cfg.HistoryDB
}

func (ro *ReadOnlyConfig) LockTTL() time.Duration {
	return ro.cfg.LockTTL
}

func (ro *ReadOnlyConfig) ImageReference() string {
	return ro.cfg.ImageReference()
}

func (ro *ReadOnlyConfig) RegistryServer() string {
	return ro.cfg.RegistryServer
}

func (ro *ReadOnlyConfig) ContextDir() string {
	return ro.cfg.ContextDir
}

func (ro *ReadOnlyConfig) Dockerfile() string {
	return ro.cfg.Dockerfile
}

func (ro *ReadOnlyConfig) Manifest() string {
	return ro.cfg.Manifest
}

func (ro *ReadOnlyConfig) Platform() string {
	return ro.cfg.Platform
}

func (ro *ReadOnlyConfig) DockerConfig() string {
	return ro.cfg.DockerConfig
}

func (ro *ReadOnlyConfig) RegistryUsernameSecret() string {
	return ro.cfg.RegistryUsernameSecret
}

func (ro *ReadOnlyConfig) RegistryPasswordSecret() string {
	return ro.cfg.RegistryPasswordSecret
}

func (ro *ReadOnlyConfig) Insecure() bool {
	return ro.cfg.Insecure
}

func (ro *ReadOnlyConfig) Target() string {
	return ro.cfg.Target
}

func (ro *ReadOnlyConfig) ResourceGroup() string {
	return ro.cfg.ResourceGroup
}

func (ro *ReadOnlyConfig) CloudCredentialsSecret() string {
	return ro.cfg.CloudCredentialsSecret
}

func (ro *ReadOnlyConfig) ManagementEndpoint() string {
	return ro.cfg.ManagementEndpoint
}

func (ro *ReadOnlyConfig) AuthorityHost() string {
	return ro.cfg.AuthorityHost
}

func (ro *ReadOnlyConfig) NotifyTokenSecret() string {
	return ro.cfg.NotifyTokenSecret
}

func (ro *ReadOnlyConfig) NotifyChatID() string {
	return ro.cfg.NotifyChatID
}

func (ro *ReadOnlyConfig) WebhookSecretName() string {
	return ro.cfg.WebhookSecretName
}

func (ro *ReadOnlyConfig) Listen() string {
	return ro.cfg.Listen
}

func (ro *ReadOnlyConfig) GitTokenSecret() string {
	return ro.cfg.GitTokenSecret
}

// This is to satisfy the CraneConfig interface
func (ro *ReadOnlyConfig) CraneDockerConfig() string {
	return ro.cfg.DockerConfig
}

func (ro *ReadOnlyConfig) CranePlatform() string {
	return ro.cfg.Platform
}

func (ro *ReadOnlyConfig) CraneInsecure() bool {
	return ro.cfg.Insecure
}
