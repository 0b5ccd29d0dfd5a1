package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var deleteIndex int

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an SMS from modem storage",
	Long: `Delete a single message by its storage index. Indexes are shown by the
receive command and stay stable until the modem reuses the slot.`,
	Example: `  smsgate delete --index 40001`,
	RunE:    runDelete,
}

func init() {
	deleteCmd.Flags().IntVarP(&deleteIndex, "index", "i", -1, "Storage index of the message to delete (required)")
	deleteCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if deleteIndex < 0 {
		return fmt.Errorf("invalid --index %d: must be non-negative", deleteIndex)
	}

	ops, cleanup := newOps(cfg, quietLogger())
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := ops.DeleteSMS(ctx, deleteIndex); err != nil {
		return fmt.Errorf("failed to delete SMS: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("✅ Deleted message %d\n", deleteIndex)
	return nil
}
