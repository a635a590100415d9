package pipeline

import (
	"context"
	"database/sql"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// Placeholder values for billing rows the directory cannot resolve.
// SentinelNoClientID marks accounts that exist in billing but have no
// client_id assigned yet; the identity normalizer rewrites it later.
const (
	UnknownValue       = "Unknown"
	SentinelNoClientID = "SIN_CLIENT_ID_MARIA"
)

const accountDirectoryQuery = "SELECT client_id, account_name, account_reach_uid FROM account"

// AccountIdentity is the billing-side identity of a messaging account.
type AccountIdentity struct {
	ClientID    string
	AccountName string
}

// BillingDirectory maps messaging account uids to billing identities.
// Loaded once per tenant per run.
type BillingDirectory map[string]AccountIdentity

// LoadBillingDirectory reads the tenant's full account table into a
// lookup map. NULL client_id columns resolve to the sentinel value.
func LoadBillingDirectory(ctx context.Context, db *sql.DB) (BillingDirectory, error) {
	rows, err := db.QueryContext(ctx, accountDirectoryQuery)
	if err != nil {
		return nil, common.NewError(common.ErrCodeEnrichQuery, "failed to query billing account table", err)
	}
	defer rows.Close()

	dir := make(BillingDirectory)
	for rows.Next() {
		var clientID, accountName sql.NullString
		var accountUID string
		if err := rows.Scan(&clientID, &accountName, &accountUID); err != nil {
			return nil, common.NewError(common.ErrCodeEnrichQuery, "failed to scan billing account row", err)
		}
		identity := AccountIdentity{
			ClientID:    SentinelNoClientID,
			AccountName: UnknownValue,
		}
		if clientID.Valid && clientID.String != "" {
			identity.ClientID = clientID.String
		}
		if accountName.Valid && accountName.String != "" {
			identity.AccountName = accountName.String
		}
		dir[accountUID] = identity
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewError(common.ErrCodeEnrichQuery, "billing account cursor failed", err)
	}
	return dir, nil
}

// Lookup resolves an account uid. A miss never fails a run, it
// resolves to Unknown placeholders.
func (d BillingDirectory) Lookup(accountUID string) AccountIdentity {
	if identity, ok := d[accountUID]; ok {
		return identity
	}
	return AccountIdentity{ClientID: UnknownValue, AccountName: UnknownValue}
}
