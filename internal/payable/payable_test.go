package payable_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/paygw-chargebee/internal"
	payablemodel "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payable"
	"github.com/frahmantamala/paygw-chargebee/internal/payable"
	"github.com/frahmantamala/paygw-chargebee/internal/payable/postgres"
)

func TestPayable(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payable Suite")
}

var _ = Describe("Payable service", func() {
	var (
		repo    payable.RepositoryAPI
		service *payable.Service
		ctx     context.Context
		account *payablemodel.Account
	)

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&payablemodel.Account{}, &payablemodel.Payable{})).To(Succeed())

		repo = postgres.NewPayableRepository(db)
		service = payable.NewService(repo, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
		ctx = context.Background()

		account = &payablemodel.Account{
			Name:             "Main",
			Enabled:          true,
			SiteName:         "acme-test",
			APIKey:           "test_key",
			CustomerIDPrefix: "AC-",
			AutoVoidInvoice:  true,
			Surcharge:        decimal.NewFromInt(10),
		}
		Expect(repo.SaveAccount(ctx, account)).To(Succeed())
	})

	savePayable := func(currency string) {
		Expect(repo.SavePayable(ctx, &payablemodel.Payable{
			Component:   "enrol_fee",
			PaymentArea: "fee",
			ItemID:      7,
			AccountID:   account.ID,
			Amount:      decimal.RequireFromString("50.00"),
			Currency:    currency,
			Description: "Course fee",
		})).To(Succeed())
	}

	It("resolves the purchase with account settings", func() {
		savePayable("usd")

		purchase, err := service.GetPurchase(ctx, "enrol_fee", "fee", 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(purchase.Currency).To(Equal("USD"))
		Expect(purchase.Gateway.SiteName).To(Equal("acme-test"))
		Expect(purchase.Gateway.AutoVoidInvoice).To(BeTrue())
		Expect(purchase.Gateway.CustomerID(42)).To(Equal("AC-42"))
		Expect(purchase.Cost().Equal(decimal.RequireFromString("55.00"))).To(BeTrue())
	})

	It("updates an existing payable in place", func() {
		savePayable("USD")
		Expect(repo.SavePayable(ctx, &payablemodel.Payable{
			Component: "enrol_fee", PaymentArea: "fee", ItemID: 7, AccountID: account.ID,
			Amount: decimal.RequireFromString("20.00"), Currency: "EUR",
		})).To(Succeed())

		purchase, err := service.GetPurchase(ctx, "enrol_fee", "fee", 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(purchase.Currency).To(Equal("EUR"))
		Expect(purchase.Amount.Equal(decimal.NewFromInt(20))).To(BeTrue())
	})

	It("reports unknown items", func() {
		_, err := service.GetPurchase(ctx, "enrol_fee", "fee", 99)

		Expect(errors.Is(err, payable.ErrPayableNotFound)).To(BeTrue())
	})

	It("refuses accounts without chargebee credentials", func() {
		account.APIKey = ""
		Expect(repo.SaveAccount(ctx, account)).To(Succeed())
		savePayable("USD")

		_, err := service.GetPurchase(ctx, "enrol_fee", "fee", 7)

		Expect(internal.HasCode(err, internal.ErrCodeGatewayDisabled)).To(BeTrue())
	})

	It("refuses disabled accounts", func() {
		account.Enabled = false
		Expect(repo.SaveAccount(ctx, account)).To(Succeed())
		savePayable("USD")

		_, err := service.GetPurchase(ctx, "enrol_fee", "fee", 7)

		Expect(internal.HasCode(err, internal.ErrCodeGatewayDisabled)).To(BeTrue())
	})

	It("refuses currencies chargebee does not accept", func() {
		savePayable("XXX")

		_, err := service.GetPurchase(ctx, "enrol_fee", "fee", 7)

		Expect(internal.HasCode(err, internal.ErrCodeUnsupportedCurrency)).To(BeTrue())
	})
})
