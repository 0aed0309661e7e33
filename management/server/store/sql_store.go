package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netbirdio/updater/management/server/telemetry"
	"github.com/netbirdio/updater/management/server/types"
	"github.com/netbirdio/updater/shared/updates/status"
)

// SqlStore represents a manifest and report storage backed by a Sql DB
type SqlStore struct {
	db          *gorm.DB
	metrics     telemetry.AppMetrics
	storeEngine Engine
}

// NewSqlStore creates a new SqlStore instance and migrates the schema
func NewSqlStore(ctx context.Context, db *gorm.DB, storeEngine Engine, metrics telemetry.AppMetrics) (*SqlStore, error) {
	sql, err := db.DB()
	if err != nil {
		return nil, err
	}

	conns := runtime.NumCPU()
	if storeEngine == SqliteStoreEngine {
		// sqlite serializes writers, more connections only produce "database is locked" errors
		conns = 1
	}
	sql.SetMaxOpenConns(conns)

	if err := db.AutoMigrate(&types.UpdateManifest{}, &types.UpdateReport{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	log.WithContext(ctx).Debugf("migrated %s store schema", storeEngine)

	return &SqlStore{db: db, storeEngine: storeEngine, metrics: metrics}, nil
}

func getGormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		PrepareStmt:    true,
		TranslateError: true,
	}
}

// NewSqliteStore creates a new SQLite store in dataDir
func NewSqliteStore(ctx context.Context, dataDir string, metrics telemetry.AppMetrics) (*SqlStore, error) {
	storeStr := fmt.Sprintf("%s?cache=shared", storeSqliteFileName)
	if runtime.GOOS == "windows" {
		// To avoid `The process cannot access the file because it is being used by another process` on Windows
		storeStr = storeSqliteFileName
	}

	file := filepath.Join(dataDir, storeStr)
	db, err := gorm.Open(sqlite.Open(file), getGormConfig())
	if err != nil {
		return nil, err
	}

	return NewSqlStore(ctx, db, SqliteStoreEngine, metrics)
}

// NewPostgresqlStore creates a new Postgres store
func NewPostgresqlStore(ctx context.Context, dsn string, metrics telemetry.AppMetrics) (*SqlStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), getGormConfig())
	if err != nil {
		return nil, err
	}

	return NewSqlStore(ctx, db, PostgresStoreEngine, metrics)
}

// NewMysqlStore creates a new MySQL store. The dsn must enable parseTime.
func NewMysqlStore(ctx context.Context, dsn string, metrics telemetry.AppMetrics) (*SqlStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), getGormConfig())
	if err != nil {
		return nil, err
	}

	return NewSqlStore(ctx, db, MysqlStoreEngine, metrics)
}

func (s *SqlStore) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreMetrics().CountQueryDuration(operation, time.Since(start))
	if err != nil {
		s.metrics.StoreMetrics().CountQueryError(operation)
	}
}

// SaveManifest appends a manifest. The existence check and the insert run in one transaction;
// the unique index catches a concurrent writer that slips between them.
func (s *SqlStore) SaveManifest(ctx context.Context, manifest *types.UpdateManifest) (err error) {
	start := time.Now()
	defer func() { s.observe("save_manifest", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		result := tx.Model(&types.UpdateManifest{}).
			Where("channel = ? AND feature_tag = ? AND version = ?", manifest.Channel, manifest.FeatureTag, manifest.Version).
			Count(&count)
		if result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return status.NewManifestExistsError(manifest.Channel, manifest.FeatureTag, manifest.Version)
		}

		return tx.Create(manifest).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return status.NewManifestExistsError(manifest.Channel, manifest.FeatureTag, manifest.Version)
	}
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return err
		}
		log.WithContext(ctx).Errorf("failed to save manifest %s to store: %s", manifest.Version, err)
		return status.Errorf(status.Internal, "failed to save manifest to store")
	}

	return nil
}

// GetManifests returns the manifests of a channel and feature tag in insertion order
func (s *SqlStore) GetManifests(ctx context.Context, channel, featureTag string) (manifests []*types.UpdateManifest, err error) {
	start := time.Now()
	defer func() { s.observe("get_manifests", start, err) }()

	result := s.db.WithContext(ctx).
		Where("channel = ? AND feature_tag = ?", channel, featureTag).
		Order("id ASC").
		Find(&manifests)
	if result.Error != nil {
		log.WithContext(ctx).Errorf("failed to get manifests from store: %s", result.Error)
		return nil, status.NewGetManifestsFromStoreError(result.Error)
	}

	return manifests, nil
}

// SaveReport appends a client report
func (s *SqlStore) SaveReport(ctx context.Context, report *types.UpdateReport) (err error) {
	start := time.Now()
	defer func() { s.observe("save_report", start, err) }()

	if result := s.db.WithContext(ctx).Create(report); result.Error != nil {
		log.WithContext(ctx).Errorf("failed to save report to store: %s", result.Error)
		return status.NewStoreReportError(result.Error)
	}

	return nil
}

// GetReports returns the reports of a device, oldest first
func (s *SqlStore) GetReports(ctx context.Context, deviceID string) (reports []*types.UpdateReport, err error) {
	start := time.Now()
	defer func() { s.observe("get_reports", start, err) }()

	result := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("reported_at ASC").
		Order("id ASC").
		Find(&reports)
	if result.Error != nil {
		log.WithContext(ctx).Errorf("failed to get reports from store: %s", result.Error)
		return nil, status.Errorf(status.Internal, "failed to get reports from store")
	}

	return reports, nil
}

// Close closes the underlying DB connection
func (s *SqlStore) Close(_ context.Context) error {
	sql, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get db: %w", err)
	}
	return sql.Close()
}

// GetStoreEngine returns underlying store engine
func (s *SqlStore) GetStoreEngine() Engine {
	return s.storeEngine
}
