package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/smsgate/internal/sms"
	"github.com/spf13/cobra"
)

var (
	sendTo      string
	sendMessage string
	sendClient  string
	sendDryRun  bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an SMS",
	Long: `Send an SMS through the local modem, or through a running gateway when
--remote-url is set. Sends through a gateway count against its rate limits.`,
	Example: `  smsgate send -t +61412345678 -m "deploy finished"
  smsgate send --remote-url http://gateway:8080 -t +61412345678 -m "deploy finished" --client ci
  smsgate send -t +61412345678 -m "long message..." --dry-run`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "Recipient phone number (required)")
	sendCmd.Flags().StringVarP(&sendMessage, "message", "m", "", "Message text (required)")
	sendCmd.Flags().StringVar(&sendClient, "client", "", "Client name for rate limit accounting")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Show the segment plan without sending")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if sendDryRun {
		return printSegmentPlan(sendTo, sendMessage, cfg.Modem.MaxSegments)
	}

	ops, cleanup := newOps(cfg, quietLogger())
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := ops.SendSMS(ctx, sendTo, sendMessage, sendClient); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("✅ SMS sent to %s\n", sendTo)
	return nil
}

// printSegmentPlan encodes the message and reports how it would go on the
// wire, without touching the modem or any rate limit.
func printSegmentPlan(to, body string, maxSegments int) error {
	segments, err := sms.NewEncoder(maxSegments).Encode(body)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("  SEGMENT PLAN")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("To:        %s\n", to)
	fmt.Printf("Alphabet:  %s\n", segments[0].Alphabet)
	fmt.Printf("Segments:  %d\n", len(segments))
	fmt.Println()
	for _, seg := range segments {
		fmt.Printf("  [%d/%d] %3d units  %s\n", seg.Seq, seg.Total, seg.Units, previewText(seg.Text))
	}
	return nil
}

// previewText keeps segment dumps to a single terminal line.
func previewText(s string) string {
	const max = 60
	runes := []rune(s)
	if len(runes) <= max {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q...", string(runes[:max]))
}
