package cmd

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payable"
)

var (
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with a demo payment account and payable",
		Long:  `Seed the database with sample data for development and testing purposes.`,
		Run:   runSeed,
	}
	seedSite      string
	seedAPIKey    string
	seedPrefix    string
	seedAmount    string
	seedCurrency  string
	seedSurcharge string
	seedAutoVoid  bool
)

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedSite, "site", "acme-test", "Chargebee site name")
	f.StringVar(&seedAPIKey, "api-key", "", "Chargebee API key")
	f.StringVar(&seedPrefix, "customer-prefix", "LMS-", "prefix for Chargebee customer ids")
	f.StringVar(&seedAmount, "amount", "50.00", "payable amount")
	f.StringVar(&seedCurrency, "currency", "USD", "payable currency")
	f.StringVar(&seedSurcharge, "surcharge", "0", "account surcharge percentage")
	f.BoolVar(&seedAutoVoid, "auto-void", true, "void unpaid invoices left by abandoned checkouts")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) {
	deps, err := initializeDependencies()
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	amount, err := decimal.NewFromString(seedAmount)
	if err != nil {
		log.Fatalf("invalid amount %q: %v", seedAmount, err)
	}
	surcharge, err := decimal.NewFromString(seedSurcharge)
	if err != nil {
		log.Fatalf("invalid surcharge %q: %v", seedSurcharge, err)
	}

	ctx := cmd.Context()
	account := &payable.Account{
		ID:               1,
		Name:             "Chargebee demo",
		Enabled:          true,
		SiteName:         seedSite,
		APIKey:           seedAPIKey,
		CustomerIDPrefix: seedPrefix,
		AutoVoidInvoice:  seedAutoVoid,
		Surcharge:        surcharge,
	}
	if err := deps.Payables.SaveAccount(ctx, account); err != nil {
		log.Fatalf("failed to seed payment account: %v", err)
	}
	fmt.Println("Seeded payment account:", account.Name)

	item := &payable.Payable{
		Component:   "enrol_fee",
		PaymentArea: "fee",
		ItemID:      1,
		AccountID:   account.ID,
		Amount:      amount,
		Currency:    seedCurrency,
		Description: "Course enrolment",
		SuccessURL:  deps.Config.Server.BaseURL + "/",
	}
	if err := deps.Payables.SavePayable(ctx, item); err != nil {
		log.Fatalf("failed to seed payable: %v", err)
	}
	fmt.Printf("Seeded payable: %s/%s/%d %s %s\n", item.Component, item.PaymentArea, item.ItemID, item.Amount, item.Currency)
}
