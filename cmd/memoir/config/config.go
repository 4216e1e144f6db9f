// Package configcmder provides the config command for managing persistent
// memoir configuration stored in the .memoir/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent memoir configuration.

Configuration is stored as config.toml in the .memoir/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure, e.g.
  model.provider, model.model, cache.provider, cache.redis_addr,
  vector_store.provider, embedding.model, recall.save_mode,
  history.initial_threshold, events.provider, api.listen

Run "memoir config list" for every key.

Use subcommands to get, set, or list configuration values:
  memoir config set <key> <value>    Set a configuration value
  memoir config get <key>            Get a configuration value
  memoir config list                 List all configuration values

Examples:
  memoir config set model.provider anthropic
  memoir config set cache.provider redis
  memoir config get recall.save_mode
  memoir config list`

const configShortDesc string = "Manage persistent memoir configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
