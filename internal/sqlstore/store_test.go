package sqlstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/models"
	"github.com/dmitrijs2005/cardkeeper/internal/semver"
)

func newMockStore(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, dialect, logging.NewJSONLogger(os.Stderr)), mock
}

func testCard() *models.Card {
	return &models.Card{
		Type:         models.RegistryTypeModel,
		UID:          "3f2b8f0e-9a51-4f47-9a10-34a1d1b6a001",
		AppEnv:       "development",
		Name:         "classifier",
		Space:        "ml-team",
		Version:      "1.2.3",
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Tags:         []string{"nightly"},
		Username:     "alice",
		OpsmlVersion: "3.0.0",
		DatacardUID:  "d0c4a1aa-0000-4000-8000-000000000001",
		ModelType:    "sklearn",
		TaskType:     "classification",
	}
}

func TestCreateCard_InsertsCardAndKeyInOneTx(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	card := testCard()
	key := &models.ArtifactKey{
		UID:          card.UID,
		Space:        card.Space,
		RegistryType: card.Type,
		EncryptedKey: []byte("wrapped"),
		StorageKey:   "ml-team/classifier/v1.2.3",
		CreatedAt:    card.CreatedAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO opsml_model_registry").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO opsml_artifact_key").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CreateCard(context.Background(), card, key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCard_RollsBackWhenKeyInsertFails(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	card := testCard()
	key := &models.ArtifactKey{UID: card.UID, Space: card.Space, RegistryType: card.Type}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO opsml_model_registry").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO opsml_artifact_key").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.CreateCard(context.Background(), card, key)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCard_MissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	card := testCard()

	mock.ExpectExec("UPDATE opsml_model_registry SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateCard(context.Background(), card)
	assert.ErrorIs(t, err, common.ErrCardNotFound)
}

func TestGetCard_NotFound(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	mock.ExpectQuery("SELECT .+ FROM opsml_data_registry WHERE uid").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"uid"}))

	_, err := s.GetCard(context.Background(), models.RegistryTypeData, "missing")
	assert.ErrorIs(t, err, common.ErrCardNotFound)
}

func TestGetCard_ScansKindColumns(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{
		"uid", "app_env", "name", "space",
		"major", "minor", "patch", "pre_tag", "build_tag", "version",
		"created_at", "tags", "username", "opsml_version",
		"datacard_uid", "model_type", "task_type",
	}
	mock.ExpectQuery("SELECT .+ FROM opsml_model_registry WHERE uid").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"uid-1", "production", "classifier", "ml-team",
			1, 2, 3, "", "", "1.2.3",
			created, `["nightly"]`, "alice", "3.0.0",
			"dc-1", "sklearn", "classification",
		))

	card, err := s.GetCard(context.Background(), models.RegistryTypeModel, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistryTypeModel, card.Type)
	assert.Equal(t, "1.2.3", card.Version)
	assert.Equal(t, []string{"nightly"}, card.Tags)
	assert.Equal(t, "sklearn", card.ModelType)
	assert.Equal(t, "dc-1", card.DatacardUID)
}

func TestQueryVersions_BoundsBecomeRowComparison(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	bounds, err := semver.ParseSpec("1.*")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT version FROM opsml_data_registry WHERE space = \$1 AND name = \$2 AND \(major, minor, patch\) >= \(\$3, \$4, \$5\) AND \(major, minor, patch\) < \(\$6, \$7, \$8\) ORDER BY`).
		WithArgs("ml-team", "dataset", int64(1), int64(0), int64(0), int64(1), int64(1), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("1.0.4").AddRow("1.0.3"))

	versions, err := s.QueryVersions(context.Background(), models.RegistryTypeData, "ml-team", "dataset", &bounds)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.4", "1.0.3"}, versions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryVersions_NoUpperBound(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)

	bounds, err := semver.ParseSpec("*")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT version FROM opsml_data_registry WHERE space = \? AND name = \? AND \(major, minor, patch\) >= \(\?, \?, \?\) ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	_, err = s.QueryVersions(context.Background(), models.RegistryTypeData, "s", "n", &bounds)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCards_UIDShortCircuitsOtherFilters(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)

	cols := []string{
		"uid", "app_env", "name", "space",
		"major", "minor", "patch", "pre_tag", "build_tag", "version",
		"created_at", "tags", "username", "opsml_version",
		"experiment_type",
	}
	mock.ExpectQuery(`SELECT .+ FROM opsml_experiment_registry WHERE 1=1 AND uid = \? ORDER BY`).
		WithArgs("uid-9").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"uid-9", "development", "run", "team",
			0, 1, 0, "", "", "0.1.0",
			time.Now().UTC(), "[]", "", "",
			"training",
		))

	cards, err := s.QueryCards(context.Background(), models.RegistryTypeExperiment, models.CardQueryArgs{
		UID:   "uid-9",
		Space: "ignored",
		Name:  "ignored",
		Tags:  []string{"ignored"},
	})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "uid-9", cards[0].UID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCards_InvalidVersionSpecFailsBeforeQuerying(t *testing.T) {
	s, _ := newMockStore(t, DialectSQLite)

	_, err := s.QueryCards(context.Background(), models.RegistryTypeData, models.CardQueryArgs{
		Name:        "dataset",
		VersionSpec: "not-a-version",
	})
	assert.Error(t, err)
}

func TestUIDExists(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM opsml_prompt_registry WHERE uid = \$1`).
		WithArgs("uid-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := s.UIDExists(context.Background(), models.RegistryTypePrompt, "uid-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetArtifactKey_NotFound(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)

	mock.ExpectQuery("SELECT .+ FROM opsml_artifact_key").
		WillReturnRows(sqlmock.NewRows([]string{"uid"}))

	_, err := s.GetArtifactKey(context.Background(), models.RegistryTypeModel, "missing")
	assert.ErrorIs(t, err, common.ErrArtifactKeyNotFound)
}

func TestGetArtifactKey_RoundTrip(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM opsml_artifact_key WHERE uid").
		WithArgs("uid-1", "model").
		WillReturnRows(sqlmock.NewRows([]string{
			"uid", "space", "registry_type", "encrypted_key", "storage_key", "created_at",
		}).AddRow("uid-1", "ml-team", "model", []byte("wrapped"), "ml-team/classifier/v1.2.3", created))

	key, err := s.GetArtifactKey(context.Background(), models.RegistryTypeModel, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistryTypeModel, key.RegistryType)
	assert.Equal(t, []byte("wrapped"), key.EncryptedKey)
	assert.Equal(t, "ml-team/classifier/v1.2.3", key.StorageKey)
}

func TestQueryStats(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(DISTINCT name\), COUNT\(DISTINCT space\) FROM opsml_audit_registry`).
		WillReturnRows(sqlmock.NewRows([]string{"c", "n", "s"}).AddRow(10, 4, 2))

	stats, err := s.QueryStats(context.Background(), models.RegistryTypeAudit)
	require.NoError(t, err)
	assert.Equal(t, &models.RegistryStats{Cards: 10, Names: 4, Spaces: 2}, stats)
}
