package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/goodtune/smsgate/internal/remote"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show modem and gateway health",
	Long: `Report signal, network registration and message storage. Against a running
gateway (--remote-url) the report also covers rate limit usage.`,
	Example: `  smsgate status
  smsgate status --remote-url http://gateway:8080`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if remoteURL != "" {
		client := remote.NewClient(remoteURL, 30*time.Second, quietLogger())
		status, err := client.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to query gateway: %w", err)
		}
		printGatewayStatus(status)
		return nil
	}

	arb := newLocalArbiter(cfg, quietLogger())
	defer arb.Stop()

	snapshot, err := arb.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to query modem: %w", err)
	}
	printBanner("MODEM STATUS")
	fmt.Printf("Modem URL:    %s\n", cfg.Modem.URL)
	printModemSnapshot(snapshot)
	return nil
}

func printBanner(title string) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Printf("  %s\n", title)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

func printModemSnapshot(s *modem.StatusSnapshot) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Printf("Registered:   ")
	if s.Registered {
		green.Println("YES")
	} else {
		red.Println("NO")
	}

	fmt.Printf("Network:      %s\n", s.NetworkType)

	fmt.Printf("Signal:       ")
	signal := fmt.Sprintf("%d/5", s.SignalLevel)
	switch {
	case s.SignalLevel >= 4:
		green.Println(signal)
	case s.SignalLevel >= 2:
		yellow.Println(signal)
	default:
		red.Println(signal)
	}

	fmt.Printf("Storage:      %d/%d stored, %d unread\n", s.Stored, s.StorageMax, s.Unread)
}

func printGatewayStatus(status *remote.GatewayStatus) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	printBanner("GATEWAY STATUS")

	fmt.Printf("Gateway:      ")
	if status.Status == "ok" {
		green.Println("ok")
	} else {
		yellow.Println(status.Status)
	}
	fmt.Printf("Version:      %s\n", status.Version)
	fmt.Printf("Uptime:       %s\n", status.Uptime)
	fmt.Println()

	if status.Modem != nil {
		printModemSnapshot(status.Modem)
	} else {
		fmt.Printf("Modem:        ")
		red.Printf("unreachable")
		if status.ModemError != "" {
			fmt.Printf(" (%s)", status.ModemError)
		}
		fmt.Println()
	}
	fmt.Println()

	fmt.Printf("Global usage: %s\n", formatUsage(status.Limits))
	for _, client := range status.Clients {
		fmt.Printf("  %-12s %s\n", client.Name+":", formatUsage(client.Status))
	}
}

// formatUsage renders one scope's usage, with 0 limits shown as unlimited.
func formatUsage(s ratelimit.Status) string {
	return fmt.Sprintf("hourly %s, daily %s",
		formatWindow(s.HourlyUsage, s.HourlyLimit),
		formatWindow(s.DailyUsage, s.DailyLimit))
}

func formatWindow(usage, limit int) string {
	if limit == 0 {
		return fmt.Sprintf("%d/∞", usage)
	}
	return fmt.Sprintf("%d/%d", usage, limit)
}
