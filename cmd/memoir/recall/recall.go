// Package recallcmder provides the recall command for saving and searching
// long-term memories on a running memoir server.
package recallcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memoir/api/client"
	"github.com/papercomputeco/memoir/pkg/cliui"
	"github.com/papercomputeco/memoir/pkg/config"
)

type recallCommander struct {
	apiTarget string
	userID    string
	jsonOut   bool

	client *client.Client
}

const recallLongDesc string = `Save and search long-term memories.

Memories are short facts about a user. Saving a fact that is nearly
identical to a stored one replaces it. Searches return the closest facts.

Examples:
  memoir recall save --user alice "prefers green tea"
  memoir recall search --user alice "drinks"
  memoir recall search --user alice "drinks" --json
  memoir recall get --user alice 9b2f1c4e-1d7a-4c53-9a58-0f3c1f6f2a10`

const recallShortDesc string = "Save and search long-term memories"

var errNoUser = errors.New("--user is required")

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall",
		Short: recallShortDesc,
		Long:  recallLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			if cmder.userID == "" {
				return errNoUser
			}
			cmder.client = client.New(cmder.apiTarget, nil)
			return nil
		},
	}

	def := config.Flags[config.FlagAPITarget]
	cmd.PersistentFlags().StringVarP(&cmder.apiTarget, def.Name, def.Shorthand, config.NewDefaultConfig().Client.APITarget, def.Description)
	cmd.PersistentFlags().StringVarP(&cmder.userID, "user", "u", "", "User the memories belong to")

	cmd.AddCommand(&cobra.Command{
		Use:   "save <fact>",
		Short: "Save a fact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.save(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	})

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search facts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.search(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
	search.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw search payload")
	cmd.AddCommand(search)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one fact by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.get(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	})

	return cmd
}

func (c *recallCommander) save(ctx context.Context, out io.Writer, fact string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := c.client.SaveMemory(ctx, c.userID, fact)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s %s %s\n", cliui.SuccessMark,
		cliui.ValueStyle.Render(res.Memory),
		cliui.DimStyle.Render("("+res.Status+")"))
	if len(res.Replaced) > 0 {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("replaced %d similar memories", len(res.Replaced))))
	}
	fmt.Fprintln(out)
	return nil
}

func (c *recallCommander) search(ctx context.Context, out io.Writer, query string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := c.client.SearchMemories(ctx, c.userID, query)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("Query:"), cliui.ValueStyle.Render(res.Query))
	fmt.Fprintln(out, cliui.MemoryList(res.Memories))
	fmt.Fprintln(out)
	return nil
}

func (c *recallCommander) get(ctx context.Context, out io.Writer, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fact, err := c.client.GetMemory(ctx, c.userID, id)
	if client.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("no memory %s for user %s", id, c.userID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s %s\n  %s\n\n",
		cliui.KeyStyle.Render("Memory:"), cliui.DimStyle.Render(fact.ID),
		cliui.ValueStyle.Render(fact.Content))
	return nil
}
