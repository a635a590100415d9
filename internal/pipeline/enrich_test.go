package pipeline

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestLoadBillingDirectory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"client_id", "account_name", "account_reach_uid"}).
		AddRow("CLIENT-1", "Banco Uno", "64a880fd06f476794e8f9769").
		AddRow(nil, "Sin Cliente", "5d0023df8b52194e42c2988e").
		AddRow("CLIENT-2", nil, "60271eff18b2fd66ba102eae")
	mock.ExpectQuery("SELECT client_id, account_name, account_reach_uid FROM account").WillReturnRows(rows)

	dir, err := LoadBillingDirectory(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, dir, 3)

	require.Equal(t, AccountIdentity{ClientID: "CLIENT-1", AccountName: "Banco Uno"}, dir.Lookup("64a880fd06f476794e8f9769"))
	require.Equal(t, SentinelNoClientID, dir.Lookup("5d0023df8b52194e42c2988e").ClientID)
	require.Equal(t, UnknownValue, dir.Lookup("60271eff18b2fd66ba102eae").AccountName)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBillingDirectoryQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT client_id, account_name, account_reach_uid FROM account").
		WillReturnError(context.DeadlineExceeded)

	_, err = LoadBillingDirectory(context.Background(), db)
	require.Error(t, err)
}

func TestLookupMiss(t *testing.T) {
	dir := BillingDirectory{}
	identity := dir.Lookup("does-not-exist")
	require.Equal(t, UnknownValue, identity.ClientID)
	require.Equal(t, UnknownValue, identity.AccountName)
}
