package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/familyevents/shipit/internal/viper"
)

// configKeys maps command flags onto configuration keys. Several commands
// define the same flag, so flags are bound when a command runs rather than
// when it is created.
var configKeys = map[string]string{
	"branch":          "branch",
	"registry-server": "registry_server",
	"repository":      "repository",
	"tag":             "tag",
	"context":         "context",
	"dockerfile":      "dockerfile",
	"manifest":        "manifest",
	"platform":        "platform",
	"docker-config":   "docker_config",
	"insecure":        "insecure",
	"target":          "target",
	"resource-group":  "resource_group",
	"artifacts":       "artifacts",
	"listen":          "listen",
}

// bindConfigFlags binds the flags of the executing command to their
// configuration keys.
func bindConfigFlags(cmd *cobra.Command, args []string) error {
	viper := viper.Instance()
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := configKeys[f.Name]
		if !ok || key == "" || err != nil {
			return
		}
		err = viper.BindPFlag(key, f)
	})
	return err
}
