package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/smsgate/internal/modem"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	receiveCount  int
	receiveBox    string
	receiveSort   string
	receiveAsc    bool
	receiveUnread bool
	receiveJSON   bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "List received SMS",
	Long: `Read messages from the modem's storage. Reads do not count against any
rate limit but still take a turn on the modem, so a busy gateway may make
them wait.`,
	Example: `  smsgate receive
  smsgate receive --count 50 --sort-by phone
  smsgate receive --box-type sim-inbox --json`,
	RunE: runReceive,
}

func init() {
	receiveCmd.Flags().IntVar(&receiveCount, "count", 20, "Maximum number of messages to fetch")
	receiveCmd.Flags().StringVar(&receiveBox, "box-type", "local-inbox", "Message box: local-inbox, local-sent, local-draft, local-trash, sim-inbox, sim-sent, sim-draft, mix-inbox, mix-sent, mix-draft")
	receiveCmd.Flags().StringVar(&receiveSort, "sort-by", "date", "Sort order: date, phone or index")
	receiveCmd.Flags().BoolVar(&receiveAsc, "ascending", false, "Sort ascending instead of descending")
	receiveCmd.Flags().BoolVar(&receiveUnread, "unread-preferred", false, "List unread messages first")
	receiveCmd.Flags().BoolVar(&receiveJSON, "json", false, "Emit raw JSON instead of a table")
	rootCmd.AddCommand(receiveCmd)
}

func runReceive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	box, err := modem.ParseBoxType(receiveBox)
	if err != nil {
		return err
	}
	sort, err := modem.ParseSortType(receiveSort)
	if err != nil {
		return err
	}
	if receiveCount < 1 {
		return fmt.Errorf("invalid --count %d: must be at least 1", receiveCount)
	}

	params := modem.ListParams{
		Page:            1,
		Count:           receiveCount,
		Box:             box,
		Sort:            sort,
		Ascending:       receiveAsc,
		UnreadPreferred: receiveUnread,
	}

	ops, cleanup := newOps(cfg, quietLogger())
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	list, err := ops.ListSMS(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list SMS: %w", err)
	}

	if receiveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	fmt.Println(renderMessageTable(list))
	return nil
}

// renderMessageTable renders one inbox page as an ASCII table.
func renderMessageTable(list *modem.MessageList) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Index", "Status", "Phone", "Date", "Message"})

	for _, m := range list.Messages {
		t.AppendRow(table.Row{
			m.Index,
			m.Stat.String(),
			m.Phone,
			m.Date,
			m.Content,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d message(s)", list.Count)})
	return t.Render()
}
