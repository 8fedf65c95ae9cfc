package runtime

import "time"

var (
	DefaultBranch                 = "main"
	DefaultTag                    = "latest"
	DefaultContextDir             = "."
	DefaultDockerfile             = "Dockerfile"
	DefaultManifest               = "requirements.txt"
	DefaultPlatform               = "amd64"
	DefaultRegistryUsernameSecret = "REGISTRY_USERNAME"
	DefaultRegistryPasswordSecret = "REGISTRY_PASSWORD"
	DefaultCloudCredentialsSecret = "AZURE_CREDENTIALS"
	DefaultManagementEndpoint     = "https://management.azure.com"
	DefaultAuthorityHost          = "https://login.microsoftonline.com"
	DefaultHistoryDB              = ".shipit/history.db"
	DefaultLockTTL                = time.Hour
	DefaultArtifactsDir           = "artifacts"
	DefaultLogFile                = "shipit.log"
	DefaultLogLevel               = "info"
	DefaultResponseFormat         = "text"
	DefaultWebhookSecretName      = "WEBHOOK_SECRET"
	DefaultListenAddress          = ":3000"
	DefaultGitTokenSecret         = "GIT_TOKEN"
)
