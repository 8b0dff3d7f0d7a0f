package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/config"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/models"
	"github.com/dmitrijs2005/cardkeeper/internal/semver"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Store persists cards and artifact keys over database/sql. One Store is
// shared by every registry instance; the pool bound comes from the config.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     logging.Logger
}

// Open connects to the SQL backend named by the tracking URI and applies
// the pool limits.
func Open(cfg *config.Config, log logging.Logger) (*Store, error) {
	dialect, driver, dsn, err := DetectDialect(cfg.TrackingURI)
	if err != nil {
		return nil, &common.SqlError{Op: "open", Err: err}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &common.SqlError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	return &Store{db: db, dialect: dialect, log: log}, nil
}

// NewStore wraps an existing database handle. Callers that let Open manage
// the connection do not need this; it exists for tests and embedded setups.
func NewStore(db *sql.DB, dialect Dialect, log logging.Logger) *Store {
	return &Store{db: db, dialect: dialect, log: log}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the detected SQL dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

// RunMigrations applies the embedded goose migrations for the dialect.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return &common.SqlError{Op: "migrate", Err: err}
	}
	if err := goose.UpContext(ctx, s.db, "migrations/"+string(s.dialect)); err != nil {
		return &common.SqlError{Op: "migrate", Err: err}
	}
	return nil
}

// commonColumns is the column set shared by every card table, in insert
// order.
const commonColumns = "uid, app_env, name, space, major, minor, patch, pre_tag, build_tag, version, created_at, tags, username, opsml_version"

// extraColumns returns the kind-specific columns for a registry type.
func extraColumns(rt models.RegistryType) []string {
	switch rt {
	case models.RegistryTypeData:
		return []string{"data_type"}
	case models.RegistryTypeModel:
		return []string{"datacard_uid", "model_type", "task_type"}
	case models.RegistryTypeExperiment:
		return []string{"experiment_type"}
	case models.RegistryTypeAudit:
		return []string{"approved"}
	case models.RegistryTypePrompt:
		return []string{"prompt_type"}
	case models.RegistryTypeService:
		return []string{"service_type"}
	default:
		return nil
	}
}

func extraValues(card *models.Card) []any {
	switch card.Type {
	case models.RegistryTypeData:
		return []any{card.DataType}
	case models.RegistryTypeModel:
		return []any{card.DatacardUID, card.ModelType, card.TaskType}
	case models.RegistryTypeExperiment:
		return []any{card.ExperimentType}
	case models.RegistryTypeAudit:
		return []any{card.Approved}
	case models.RegistryTypePrompt:
		return []any{card.PromptType}
	case models.RegistryTypeService:
		return []any{card.ServiceType}
	default:
		return nil
	}
}

func extraScanTargets(card *models.Card) []any {
	switch card.Type {
	case models.RegistryTypeData:
		return []any{&card.DataType}
	case models.RegistryTypeModel:
		return []any{&card.DatacardUID, &card.ModelType, &card.TaskType}
	case models.RegistryTypeExperiment:
		return []any{&card.ExperimentType}
	case models.RegistryTypeAudit:
		return []any{&card.Approved}
	case models.RegistryTypePrompt:
		return []any{&card.PromptType}
	case models.RegistryTypeService:
		return []any{&card.ServiceType}
	default:
		return nil
	}
}

// versionParts splits a card's version string into the numeric and tag
// columns stored beside it.
func versionParts(version string) (major, minor, patch uint64, pre, build string, err error) {
	v, err := semver.Parse(version)
	if err != nil {
		return 0, 0, 0, "", "", err
	}
	return v.Major(), v.Minor(), v.Patch(), v.Prerelease(), v.Metadata(), nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateCard inserts the card row and its artifact key in one transaction,
// so a key exists iff its card exists.
func (s *Store) CreateCard(ctx context.Context, card *models.Card, key *models.ArtifactKey) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.insertCard(ctx, tx, card); err != nil {
			return err
		}
		return s.insertArtifactKey(ctx, tx, key)
	})
}

func (s *Store) insertCard(ctx context.Context, db dbx.DBTX, card *models.Card) error {
	major, minor, patch, pre, build, err := versionParts(card.Version)
	if err != nil {
		return err
	}
	tags, err := marshalTags(card.Tags)
	if err != nil {
		return &common.SqlError{Op: "insert card", Err: err}
	}

	b := NewBuilder(s.dialect)
	b.Write("INSERT INTO " + card.Type.Table() + " (" + commonColumns)
	extras := extraColumns(card.Type)
	for _, col := range extras {
		b.Write(", " + col)
	}
	b.Write(") VALUES (")
	values := []any{
		card.UID, card.AppEnv, card.Name, card.Space,
		major, minor, patch, pre, build, card.Version,
		card.CreatedAt, tags, card.Username, card.OpsmlVersion,
	}
	values = append(values, extraValues(card)...)
	b.BindAll(values...)
	b.Write(")")

	query, args := b.Query()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return &common.SqlError{Op: "insert card", Err: err}
	}
	return nil
}

// UpdateCard rewrites every column of the card's row, keyed by uid. The card
// must have been created previously, so no field is defaulted here.
func (s *Store) UpdateCard(ctx context.Context, card *models.Card) error {
	major, minor, patch, pre, build, err := versionParts(card.Version)
	if err != nil {
		return err
	}
	tags, err := marshalTags(card.Tags)
	if err != nil {
		return &common.SqlError{Op: "update card", Err: err}
	}

	b := NewBuilder(s.dialect)
	b.Write("UPDATE " + card.Type.Table() + " SET ")
	set := func(col string, v any) {
		b.Write(col + " = ").Bind(v).Write(", ")
	}
	set("app_env", card.AppEnv)
	set("name", card.Name)
	set("space", card.Space)
	set("major", major)
	set("minor", minor)
	set("patch", patch)
	set("pre_tag", pre)
	set("build_tag", build)
	set("version", card.Version)
	set("tags", tags)
	set("username", card.Username)
	extras := extraColumns(card.Type)
	values := extraValues(card)
	for i, col := range extras {
		set(col, values[i])
	}
	b.Write("opsml_version = ").Bind(card.OpsmlVersion)
	b.Write(" WHERE uid = ").Bind(card.UID)

	query, args := b.Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &common.SqlError{Op: "update card", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &common.SqlError{Op: "update card", Err: err}
	}
	if n == 0 {
		return common.ErrCardNotFound
	}
	return nil
}

// DeleteCard removes the card row.
func (s *Store) DeleteCard(ctx context.Context, rt models.RegistryType, uid string) error {
	b := NewBuilder(s.dialect)
	b.Write("DELETE FROM " + rt.Table() + " WHERE uid = ").Bind(uid)
	query, args := b.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &common.SqlError{Op: "delete card", Err: err}
	}
	return nil
}

// GetCard fetches one card by uid.
func (s *Store) GetCard(ctx context.Context, rt models.RegistryType, uid string) (*models.Card, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT " + commonColumns)
	for _, col := range extraColumns(rt) {
		b.Write(", " + col)
	}
	b.Write(" FROM " + rt.Table() + " WHERE uid = ").Bind(uid)

	query, args := b.Query()
	row := s.db.QueryRowContext(ctx, query, args...)
	card, err := scanCardRow(row, rt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrCardNotFound
	}
	if err != nil {
		return nil, &common.SqlError{Op: "get card", Err: err}
	}
	return card, nil
}

// UIDExists reports whether a card with the uid exists in the registry table.
func (s *Store) UIDExists(ctx context.Context, rt models.RegistryType, uid string) (bool, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT COUNT(*) FROM " + rt.Table() + " WHERE uid = ").Bind(uid)
	query, args := b.Query()

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, &common.SqlError{Op: "uid exists", Err: err}
	}
	return count > 0, nil
}

// QueryVersions returns the version strings for a (space, name) lineage,
// optionally constrained to [bounds.Lower, bounds.Upper), newest first by
// numeric version order with a release sorting above its pre-releases.
func (s *Store) QueryVersions(ctx context.Context, rt models.RegistryType, space, name string, bounds *semver.Bounds) ([]string, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT version FROM " + rt.Table() + " WHERE space = ").Bind(space)
	b.Write(" AND name = ").Bind(name)
	if bounds != nil {
		b.Write(" AND (major, minor, patch) >= (")
		b.BindAll(bounds.Lower.Major(), bounds.Lower.Minor(), bounds.Lower.Patch())
		b.Write(")")
		if !bounds.NoUpperBound {
			b.Write(" AND (major, minor, patch) < (")
			b.BindAll(bounds.Upper.Major(), bounds.Upper.Minor(), bounds.Upper.Patch())
			b.Write(")")
		}
	}
	b.Write(" ORDER BY major DESC, minor DESC, patch DESC," +
		" CASE WHEN pre_tag = '' THEN 1 ELSE 0 END DESC, pre_tag DESC, created_at DESC")

	query, args := b.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.SqlError{Op: "query versions", Err: err}
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, &common.SqlError{Op: "query versions", Err: err}
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.SqlError{Op: "query versions", Err: err}
	}
	return versions, nil
}

// QueryCards searches a registry table. A uid filter short-circuits every
// other predicate; the caller validates its format beforehand.
func (s *Store) QueryCards(ctx context.Context, rt models.RegistryType, args models.CardQueryArgs) ([]models.Card, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT " + commonColumns)
	for _, col := range extraColumns(rt) {
		b.Write(", " + col)
	}
	b.Write(" FROM " + rt.Table() + " WHERE 1=1")

	if args.UID != "" {
		b.Write(" AND uid = ").Bind(args.UID)
	} else {
		if args.Space != "" {
			b.Write(" AND space = ").Bind(args.Space)
		}
		if args.Name != "" {
			b.Write(" AND name = ").Bind(args.Name)
		}
		if args.VersionSpec != "" {
			bounds, err := semver.ParseSpec(args.VersionSpec)
			if err != nil {
				return nil, err
			}
			b.Write(" AND (major, minor, patch) >= (")
			b.BindAll(bounds.Lower.Major(), bounds.Lower.Minor(), bounds.Lower.Patch())
			b.Write(")")
			if !bounds.NoUpperBound {
				b.Write(" AND (major, minor, patch) < (")
				b.BindAll(bounds.Upper.Major(), bounds.Upper.Minor(), bounds.Upper.Patch())
				b.Write(")")
			}
		}
		if args.MaxDate != nil {
			b.Write(" AND created_at <= ").Bind(*args.MaxDate)
		}
		for _, tag := range args.Tags {
			b.Write(" AND tags LIKE ").Bind(`%"` + tag + `"%`)
		}
	}

	if args.SortByTimestamp {
		b.Write(" ORDER BY created_at DESC")
	} else {
		b.Write(" ORDER BY major DESC, minor DESC, patch DESC")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 50
	}
	b.Write(fmt.Sprintf(" LIMIT %d", limit))

	query, qargs := b.Query()
	rows, err := s.db.QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, &common.SqlError{Op: "query cards", Err: err}
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		card, err := scanCardRow(rows, rt)
		if err != nil {
			return nil, &common.SqlError{Op: "query cards", Err: err}
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.SqlError{Op: "query cards", Err: err}
	}
	return cards, nil
}

func (s *Store) insertArtifactKey(ctx context.Context, db dbx.DBTX, key *models.ArtifactKey) error {
	b := NewBuilder(s.dialect)
	b.Write("INSERT INTO opsml_artifact_key (uid, space, registry_type, encrypted_key, storage_key, created_at) VALUES (")
	b.BindAll(key.UID, key.Space, string(key.RegistryType), key.EncryptedKey, key.StorageKey, key.CreatedAt)
	b.Write(")")

	query, args := b.Query()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return &common.SqlError{Op: "insert artifact key", Err: err}
	}
	return nil
}

// GetArtifactKey fetches the artifact key for a card.
func (s *Store) GetArtifactKey(ctx context.Context, rt models.RegistryType, uid string) (*models.ArtifactKey, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT uid, space, registry_type, encrypted_key, storage_key, created_at FROM opsml_artifact_key WHERE uid = ").Bind(uid)
	b.Write(" AND registry_type = ").Bind(string(rt))

	query, args := b.Query()
	var key models.ArtifactKey
	var registryType string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&key.UID, &key.Space, &registryType, &key.EncryptedKey, &key.StorageKey, &key.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrArtifactKeyNotFound
	}
	if err != nil {
		return nil, &common.SqlError{Op: "get artifact key", Err: err}
	}
	key.RegistryType = models.RegistryType(registryType)
	return &key, nil
}

// DeleteArtifactKey removes the artifact key row for a card.
func (s *Store) DeleteArtifactKey(ctx context.Context, rt models.RegistryType, uid string) error {
	b := NewBuilder(s.dialect)
	b.Write("DELETE FROM opsml_artifact_key WHERE uid = ").Bind(uid)
	b.Write(" AND registry_type = ").Bind(string(rt))

	query, args := b.Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &common.SqlError{Op: "delete artifact key", Err: err}
	}
	return nil
}

// ListSpaces returns the distinct spaces present in a registry table.
func (s *Store) ListSpaces(ctx context.Context, rt models.RegistryType) ([]string, error) {
	query := "SELECT DISTINCT space FROM " + rt.Table() + " ORDER BY space"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &common.SqlError{Op: "list spaces", Err: err}
	}
	defer rows.Close()

	var spaces []string
	for rows.Next() {
		var space string
		if err := rows.Scan(&space); err != nil {
			return nil, &common.SqlError{Op: "list spaces", Err: err}
		}
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.SqlError{Op: "list spaces", Err: err}
	}
	return spaces, nil
}

const pageSize = 30

// QueryPage returns one page of (space, name) lineages ordered by most
// recently updated.
func (s *Store) QueryPage(ctx context.Context, req models.RegistryPageRequest) ([]models.RegistryPageEntry, error) {
	b := NewBuilder(s.dialect)
	b.Write("SELECT space, name, COUNT(*) AS versions, MAX(created_at) AS updated_at FROM " + req.RegistryType.Table() + " WHERE 1=1")
	if req.Space != "" {
		b.Write(" AND space = ").Bind(req.Space)
	}
	if req.SearchTerm != "" {
		b.Write(" AND name LIKE ").Bind("%" + req.SearchTerm + "%")
	}
	b.Write(" GROUP BY space, name ORDER BY updated_at DESC")
	page := req.Page
	if page < 0 {
		page = 0
	}
	b.Write(fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, page*pageSize))

	query, args := b.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.SqlError{Op: "query page", Err: err}
	}
	defer rows.Close()

	var entries []models.RegistryPageEntry
	for rows.Next() {
		var e models.RegistryPageEntry
		if err := rows.Scan(&e.Space, &e.Name, &e.Versions, &e.UpdatedAt); err != nil {
			return nil, &common.SqlError{Op: "query page", Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.SqlError{Op: "query page", Err: err}
	}
	return entries, nil
}

// QueryStats summarizes a registry table.
func (s *Store) QueryStats(ctx context.Context, rt models.RegistryType) (*models.RegistryStats, error) {
	query := "SELECT COUNT(*), COUNT(DISTINCT name), COUNT(DISTINCT space) FROM " + rt.Table()
	var stats models.RegistryStats
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Cards, &stats.Names, &stats.Spaces); err != nil {
		return nil, &common.SqlError{Op: "query stats", Err: err}
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCardRow(row rowScanner, rt models.RegistryType) (*models.Card, error) {
	card := &models.Card{Type: rt}
	var major, minor, patch uint64
	var pre, build, tags string
	var created time.Time

	targets := []any{
		&card.UID, &card.AppEnv, &card.Name, &card.Space,
		&major, &minor, &patch, &pre, &build, &card.Version,
		&created, &tags, &card.Username, &card.OpsmlVersion,
	}
	targets = append(targets, extraScanTargets(card)...)

	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	card.CreatedAt = created
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &card.Tags); err != nil {
			return nil, err
		}
	}
	return card, nil
}
