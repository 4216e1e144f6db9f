// Package memoircmder is the root memoir command.
package memoircmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/memoir/cmd/memoir/auth"
	chatcmder "github.com/papercomputeco/memoir/cmd/memoir/chat"
	configcmder "github.com/papercomputeco/memoir/cmd/memoir/config"
	initcmder "github.com/papercomputeco/memoir/cmd/memoir/init"
	recallcmder "github.com/papercomputeco/memoir/cmd/memoir/recall"
	servecmder "github.com/papercomputeco/memoir/cmd/memoir/serve"
	versioncmder "github.com/papercomputeco/memoir/cmd/memoir/version"
)

const memoirLongDesc string = `memoir gives a chat assistant memory.

Each user gets a conversation that is cached, persisted and summarized as
it grows, plus a long-term memory of short facts that are recalled by
similarity before every model call.

Run the server and talk to it:
  memoir serve                         Run the API server
  memoir chat --user alice             Chat interactively
  memoir recall search --user alice x  Search long-term memory`

const memoirShortDesc string = "memoir - conversational memory for chat assistants"

func NewMemoirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "memoir",
		Short:         memoirShortDesc,
		Long:          memoirLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .memoir/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
