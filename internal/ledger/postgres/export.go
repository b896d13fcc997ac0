package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	ledgerpkg "github.com/frahmantamala/paygw-chargebee/internal/ledger"
)

const exportByUserQuery = `
	SELECT paymentid, COALESCE(customerid, '') AS customerid, transactionid,
	       COALESCE(invoicenumber, '') AS invoicenumber, COALESCE(amountpaid, '') AS amountpaid
	FROM paygw_chargebee
	WHERE userid = ?
	ORDER BY id`

// Exporter reads privacy exports through sqlx.
type Exporter struct {
	db *sqlx.DB
}

func NewExporter(db *sqlx.DB) *Exporter {
	return &Exporter{db: db}
}

func (e *Exporter) ExportByUser(ctx context.Context, userID int64) ([]ledgerpkg.ExportRow, error) {
	rows := []ledgerpkg.ExportRow{}
	if err := e.db.SelectContext(ctx, &rows, e.db.Rebind(exportByUserQuery), userID); err != nil {
		return nil, err
	}
	return rows, nil
}
