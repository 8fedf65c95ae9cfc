package config

import "time"

// Config is a read-only shipit configuration.
type Config interface {
	commonConfig
	imageConfig
	targetConfig
	serverConfig
}

// commonConfig contains configurables common to every command.
type commonConfig interface {
	Branch() string
	ResponseFormat() string
	LogFile() string
	Artifacts() string
	SecretsDir() string
	HistoryDB() string
	LockTTL() time.Duration
}

// imageConfig are configurables relevant to building and publishing the
// image.
type imageConfig interface {
	ImageReference() string
	RegistryServer() string
	ContextDir() string
	Dockerfile() string
	Manifest() string
	Platform() string
	DockerConfig() string
	RegistryUsernameSecret() string
	RegistryPasswordSecret() string
	Insecure() bool
}

// targetConfig are configurables relevant to redeploying the target and
// reporting the outcome.
type targetConfig interface {
	Target() string
	ResourceGroup() string
	CloudCredentialsSecret() string
	ManagementEndpoint() string
	AuthorityHost() string
	NotifyTokenSecret() string
	NotifyChatID() string
}

// serverConfig are configurables relevant to the webhook server.
type serverConfig interface {
	WebhookSecretName() string
	Listen() string
	GitTokenSecret() string
}
