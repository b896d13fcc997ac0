package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	privacyCmd = &cobra.Command{
		Use:   "privacy",
		Short: "Export or erase personal data held in the Chargebee ledger",
	}
	privacyExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Print a user's Chargebee records as JSON",
		RunE:  runPrivacyExport,
	}
	privacyEraseCmd = &cobra.Command{
		Use:   "erase",
		Short: "Blank user and customer ids on the records of the given payments",
		RunE:  runPrivacyErase,
	}
	privacyUserID     int64
	privacyPaymentIDs []int64
)

func init() {
	privacyExportCmd.Flags().Int64Var(&privacyUserID, "user-id", 0, "user whose records to export")
	_ = privacyExportCmd.MarkFlagRequired("user-id")
	privacyEraseCmd.Flags().Int64SliceVar(&privacyPaymentIDs, "payment-ids", nil, "comma separated payment ids")
	_ = privacyEraseCmd.MarkFlagRequired("payment-ids")

	privacyCmd.AddCommand(privacyExportCmd, privacyEraseCmd)
	rootCmd.AddCommand(privacyCmd)
}

func runPrivacyExport(cmd *cobra.Command, _ []string) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	rows, err := deps.Ledger.Export(cmd.Context(), privacyUserID)
	if err != nil {
		return err
	}
	payments, err := deps.Payments.ListByUser(cmd.Context(), privacyUserID)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"user_id":   privacyUserID,
		"chargebee": rows,
		"payments":  payments,
	})
}

func runPrivacyErase(cmd *cobra.Command, _ []string) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	n, err := deps.Ledger.Erase(cmd.Context(), privacyPaymentIDs)
	if err != nil {
		return err
	}
	fmt.Printf("erased personal data from %d record(s)\n", n)
	return nil
}
