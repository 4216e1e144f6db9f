// Package chatcmder provides the chat command, an interactive session with a
// running memoir server.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/api/client"
	"github.com/papercomputeco/memoir/pkg/cliui"
	"github.com/papercomputeco/memoir/pkg/config"
	"github.com/papercomputeco/memoir/pkg/dotdir"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/logger"
	"github.com/papercomputeco/memoir/pkg/utils"
)

type chatCommander struct {
	apiTarget string
	userID    string
	configDir string
	plain     bool
	debug     bool

	client *client.Client
	dotdir *dotdir.Manager
	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session with a running memoir server.

Every turn goes through the server, which keeps the conversation for the
user and looks up relevant long-term memories before the model answers.
The user id is remembered in the .memoir/ directory, so later runs resume
the same conversation without --user.

Commands inside the session:
  /history           Show the conversation the model currently sees
  /reset             Drop the cached conversation and reload it from storage
  /remember <fact>   Save a fact to long-term memory
  /recall <query>    Search long-term memory
  /image <url> <msg> Send a message with an image
  /exit              Quit (Ctrl+D works too)

Examples:
  memoir chat --user alice
  memoir chat --api-target http://localhost:8081`

const chatShortDesc string = "Interactive chat with a memoir server"

var errNoUser = errors.New("no user id: pass --user or resume a saved session")

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.logger = logger.NewLogger(cmder.debug)
			defer func() { _ = cmder.logger.Sync() }()

			cmder.client = client.New(cmder.apiTarget, nil)
			cmder.dotdir = dotdir.NewManager()
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User id to chat as (default: last session)")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print replies without markdown rendering")

	return cmd
}

func (c *chatCommander) resolveUser() (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}

	session, err := c.dotdir.LoadChatSession(c.configDir)
	if err != nil {
		return "", err
	}
	if session == nil || session.UserID == "" {
		return "", errNoUser
	}
	return session.UserID, nil
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	userID, err := c.resolveUser()
	if err != nil {
		return err
	}

	if err := c.dotdir.SaveChatSession(&dotdir.ChatSession{UserID: userID}, c.configDir); err != nil {
		c.logger.Warn("could not save chat session", zap.Error(err))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("User:"), cliui.NameStyle.Render(userID))
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Server:"), cliui.DimStyle.Render(c.apiTarget))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.handle(ctx, out, userID, input); err != nil {
			fmt.Fprintf(out, "  %s %v\n", cliui.FailMark, err)
		}
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// handle runs one line of input: a slash command or a chat message.
func (c *chatCommander) handle(ctx context.Context, out io.Writer, userID, input string) error {
	command, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "/history":
		return c.showHistory(ctx, out, userID)

	case "/reset":
		if err := c.client.ResetHistory(ctx, userID); err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s Conversation cache cleared\n", cliui.SuccessMark)
		return nil

	case "/remember":
		if rest == "" {
			return errors.New("usage: /remember <fact>")
		}
		res, err := c.client.SaveMemory(ctx, userID, rest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s Remembered %s %s\n", cliui.SuccessMark,
			cliui.ValueStyle.Render(res.Memory), cliui.DimStyle.Render("("+res.Status+")"))
		return nil

	case "/recall":
		if rest == "" {
			return errors.New("usage: /recall <query>")
		}
		res, err := c.client.SearchMemories(ctx, userID, rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cliui.MemoryList(res.Memories))
		return nil

	case "/image":
		imageURL, text, _ := strings.Cut(rest, " ")
		if imageURL == "" {
			return errors.New("usage: /image <url> <message>")
		}
		return c.turn(ctx, out, userID, strings.TrimSpace(text), []string{imageURL})

	default:
		if strings.HasPrefix(command, "/") {
			return fmt.Errorf("unknown command %s", command)
		}
		return c.turn(ctx, out, userID, input, nil)
	}
}

func (c *chatCommander) turn(ctx context.Context, out io.Writer, userID, text string, images []string) error {
	var reply string
	err := cliui.Step(out, "thinking", func() error {
		res, err := c.client.Chat(ctx, userID, text, images)
		if err != nil {
			return err
		}
		reply = res.Reply
		c.logger.Debug("turn complete",
			zap.Int("history_length", res.HistoryLength),
			zap.Int("retained", res.Retained),
		)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprint(out, cliui.AssistantPrompt)
	if c.plain {
		fmt.Fprintln(out, reply)
		return nil
	}

	rendered, err := cliui.RenderMarkdown(reply)
	if err != nil {
		c.logger.Debug("markdown rendering failed", zap.Error(err))
	}
	fmt.Fprint(out, rendered)
	return nil
}

func (c *chatCommander) showHistory(ctx context.Context, out io.Writer, userID string) error {
	res, err := c.client.History(ctx, userID)
	if err != nil {
		return err
	}

	if res.Length == 0 {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("(empty conversation)"))
		return nil
	}

	for _, msg := range res.Messages {
		role := string(msg.Role)
		if msg.Role == llm.RoleSummary {
			role = "summary"
		}
		fmt.Fprintf(out, "  %s %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("%-9s", role)),
			cliui.ValueStyle.Render(utils.Truncate(strings.ReplaceAll(msg.Text(), "\n", " "), 100)),
		)
	}
	fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d messages", res.Length)))
	return nil
}
