package commands

import (
	"context"
	"os"
	"strings"
	"time"

	"edupage-client/lib/htmlutil"
	"edupage-client/lib/platforms/edupage/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var messageLimit int

func init() {
	messagesCmd.Flags().IntVarP(&messageLimit, "limit", "n", 20, "How many timeline items to print.")
	rootCmd.AddCommand(messagesCmd)
}

const previewWidth = 60

func messageRows(ctx context.Context, messages []*model.Message, limit int) []table.Row {
	if limit >= 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	rows := make([]table.Row, 0, len(messages))
	for _, m := range messages {
		var owner string
		if m.Owner != nil {
			owner = m.Owner.Profile().FullName()
		}
		if owner == "" {
			owner = string(m.OwnerName)
		}
		preview := htmlutil.PlainText(ctx, m.Content())
		rows = append(rows, table.Row{
			string(m.ID),
			m.Created.Format(time.DateTime),
			string(m.Type),
			owner,
			len(m.Replies),
			text.Snip(strings.Join(strings.Fields(preview), " "), previewWidth, "..."),
		})
	}
	return rows
}

var messagesCmd = &cobra.Command{
	Use:   "messages [--limit <n>]",
	Short: "Prints the newest timeline items with their text flattened.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cfg, "")
		if err != nil {
			return err
		}
		defer s.Close(cmd.Context())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Created", "Type", "From", "Replies", "Text"})
		t.AppendRows(messageRows(cmd.Context(), s.Graph().Timeline, messageLimit))
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
