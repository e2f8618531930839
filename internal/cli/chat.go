package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/app"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

func newChatCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Drive the conversation pipeline",
	}
	cmd.AddCommand(newChatSendCmd(e), newChatHistoryCmd(e))
	return cmd
}

func newChatSendCmd(e *env) *cobra.Command {
	var (
		conversationID int64
		content        string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message and print the transcript",
		Long: `Send a message to a conversation as its owner would, wait for the AI
reply (or the fallback) and print the full transcript.

Example:
  healthctl chat send --conversation 1790000000000000000 --content "I have a headache"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				msgs, err := a.Pipeline.CreateMessage(ctx, conversationID, content)
				if err != nil {
					return fmt.Errorf("send message: %w", err)
				}
				printTranscript(cmd.OutOrStdout(), msgs)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&conversationID, "conversation", 0, "conversation ID")
	cmd.Flags().StringVar(&content, "content", "", "message text")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newChatHistoryCmd(e *env) *cobra.Command {
	var conversationID int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a conversation's transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				msgs, err := a.Pipeline.GetTranscript(ctx, conversationID)
				if err != nil {
					return fmt.Errorf("read transcript: %w", err)
				}
				printTranscript(cmd.OutOrStdout(), msgs)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&conversationID, "conversation", 0, "conversation ID")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

// withApp builds the services for one command and tears them down after.
func (e *env) withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func printTranscript(w io.Writer, msgs []*models.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %-4s %s\n", m.CreatedAt.UTC().Format(time.RFC3339), m.SenderType, m.Content)
	}
}
