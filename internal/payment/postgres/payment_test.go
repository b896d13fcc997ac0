package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/paygw-chargebee/internal/payment"
)

func TestPaymentRepository(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Payment Repository Suite")
}

var _ = ginkgo.Describe("PaymentRepository", func() {
	var (
		db   *gorm.DB
		repo paymentpkg.RepositoryAPI
		ctx  context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(db.AutoMigrate(&payment.Payment{})).To(gomega.Succeed())

		repo = NewPaymentRepository(db)
		ctx = context.Background()
	})

	ginkgo.Describe("Save", func() {
		ginkgo.It("should insert the payment and return its id", func() {
			// Given
			p := &payment.Payment{
				AccountID:   1,
				Component:   "enrol_fee",
				PaymentArea: "fee",
				ItemID:      7,
				UserID:      42,
				Amount:      decimal.RequireFromString("50.00"),
				Currency:    "USD",
			}

			// When
			id, err := repo.Save(ctx, p)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(id).To(gomega.BeNumerically(">", 0))
			gomega.Expect(p.Gateway).To(gomega.Equal(payment.GatewayChargebee))

			stored, err := repo.GetByID(ctx, id)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored.Amount.Equal(decimal.RequireFromString("50"))).To(gomega.BeTrue())
			gomega.Expect(stored.UserID).To(gomega.Equal(int64(42)))
		})
	})

	ginkgo.Describe("GetByID", func() {
		ginkgo.It("should return not found for unknown ids", func() {
			_, err := repo.GetByID(ctx, 999)

			gomega.Expect(errors.Is(err, paymentpkg.ErrPaymentNotFound)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("ListByUser", func() {
		ginkgo.It("should only return the user's payments", func() {
			for _, uid := range []int64{1, 1, 2} {
				_, err := repo.Save(ctx, &payment.Payment{
					AccountID: 1, Component: "enrol_fee", PaymentArea: "fee", ItemID: 1,
					UserID: uid, Amount: decimal.NewFromInt(5), Currency: "EUR",
				})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			}

			payments, err := repo.ListByUser(ctx, 1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(payments).To(gomega.HaveLen(2))
		})
	})
})
