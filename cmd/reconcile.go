package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
)

var (
	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile one checkout session now",
		Long:  `Fetch a checkout session from Chargebee and record, void or acknowledge it`,
		RunE:  runReconcile,
	}
	reconcileSessionID string
	reconcilePurchase  payment.PurchaseContext
)

func init() {
	f := reconcileCmd.Flags()
	f.StringVar(&reconcileSessionID, "session-id", "", "Chargebee hosted page id")
	f.StringVar(&reconcilePurchase.Component, "component", "", "payable component")
	f.StringVar(&reconcilePurchase.PaymentArea, "paymentarea", "", "payable payment area")
	f.Int64Var(&reconcilePurchase.ItemID, "itemid", 0, "payable item id")
	f.Int64Var(&reconcilePurchase.UserID, "user-id", 0, "paying user id")
	for _, name := range []string{"session-id", "component", "paymentarea", "itemid", "user-id"} {
		_ = reconcileCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	result, err := deps.Engine.Reconcile(cmd.Context(), reconcileSessionID, reconcilePurchase)
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", reconcileSessionID, err)
	}
	return nil
}
