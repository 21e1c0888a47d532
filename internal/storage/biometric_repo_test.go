package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-mekuria/zk-server/internal/domain"
)

func setupBiometricMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *BiometricRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewBiometricRepo(db)
}

func TestBiometricRepo_Upsert(t *testing.T) {
	db, mock, repo := setupBiometricMock(t)
	defer db.Close()

	tpl := domain.BiometricTemplate{PIN: "1001", Type: domain.BiometricFingerprint, Slot: 3, Template: "AAAA"}

	mock.ExpectExec(`INSERT INTO biometric_templates`).
		WithArgs(tpl.PIN, int(tpl.Type), tpl.Slot, tpl.Index, tpl.Valid, tpl.Duress, tpl.MajorVer, tpl.MinorVer, tpl.Format, tpl.Template, tpl.SourceSN).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), tpl)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBiometricRepo_Delete_PinOnly(t *testing.T) {
	db, mock, repo := setupBiometricMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM biometric_templates WHERE pin = \$1`).
		WithArgs("1001").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.Delete(context.Background(), "1001", nil, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBiometricRepo_Delete_TypeAndSlot(t *testing.T) {
	db, mock, repo := setupBiometricMock(t)
	defer db.Close()

	typ := domain.BiometricFingerprint
	slot := 3

	mock.ExpectExec(`DELETE FROM biometric_templates WHERE pin = \$1 AND type = \$2 AND slot = \$3`).
		WithArgs("1001", int(typ), slot).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "1001", &typ, &slot)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBiometricRepo_ListByPIN(t *testing.T) {
	db, mock, repo := setupBiometricMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"pin", "type", "slot", "index_no", "valid", "duress", "major_ver", "minor_ver", "format", "template", "source_sn"}).
		AddRow("1001", 1, 3, 0, true, false, "0", "0", "ZK", "AAAA", "A01")

	mock.ExpectQuery(`SELECT pin, type, slot, index_no, valid, duress, major_ver, minor_ver, format, template, source_sn\s+FROM biometric_templates WHERE pin = \$1`).
		WithArgs("1001").
		WillReturnRows(rows)

	templates, err := repo.ListByPIN(context.Background(), "1001")
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, domain.BiometricFingerprint, templates[0].Type)
}
