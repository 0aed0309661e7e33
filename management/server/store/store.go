package store

//go:generate go run go.uber.org/mock/mockgen -package store -destination=store_mock.go -source=./store.go -build_flags=-mod=mod

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/management/server/telemetry"
	"github.com/netbirdio/updater/management/server/testutil"
	"github.com/netbirdio/updater/management/server/types"
)

// Store persists release manifests and client reports. Manifests are append-only.
type Store interface {
	// SaveManifest appends a manifest. A manifest with the same channel, feature tag and version fails with status.AlreadyExists.
	SaveManifest(ctx context.Context, manifest *types.UpdateManifest) error
	// GetManifests returns every manifest published on channel with exactly the given feature tag
	GetManifests(ctx context.Context, channel, featureTag string) ([]*types.UpdateManifest, error)
	// SaveReport appends a client lifecycle report
	SaveReport(ctx context.Context, report *types.UpdateReport) error
	// GetReports returns the reports of a device ordered by timestamp
	GetReports(ctx context.Context, deviceID string) ([]*types.UpdateReport, error)
	GetStoreEngine() Engine
	Close(ctx context.Context) error
}

type Engine string

const (
	SqliteStoreEngine   Engine = "sqlite"
	PostgresStoreEngine Engine = "postgres"
	MysqlStoreEngine    Engine = "mysql"

	storeEngineEnv = "NB_UPDATES_STORE_ENGINE"
	postgresDsnEnv = "NB_UPDATES_STORE_ENGINE_POSTGRES_DSN"
	mysqlDsnEnv    = "NB_UPDATES_STORE_ENGINE_MYSQL_DSN"

	storeSqliteFileName = "updates.db"
)

func getStoreEngineFromEnv() Engine {
	kind, ok := os.LookupEnv(storeEngineEnv)
	if !ok {
		return ""
	}

	value := Engine(strings.ToLower(kind))
	if value == SqliteStoreEngine || value == PostgresStoreEngine || value == MysqlStoreEngine {
		return value
	}

	return SqliteStoreEngine
}

// NewStore creates a new store based on the provided engine type.
// An empty engine falls back to the environment and then to SQLite in dataDir.
// An empty dsn for postgres and mysql is read from the environment.
func NewStore(ctx context.Context, kind Engine, dataDir string, dsn string, metrics telemetry.AppMetrics) (Store, error) {
	if kind == "" {
		kind = getStoreEngineFromEnv()
	}
	if kind == "" {
		kind = SqliteStoreEngine
	}

	switch kind {
	case SqliteStoreEngine:
		log.WithContext(ctx).Info("using SQLite store engine")
		return NewSqliteStore(ctx, dataDir, metrics)
	case PostgresStoreEngine:
		log.WithContext(ctx).Info("using Postgres store engine")
		dsn, err := dsnOrEnv(dsn, postgresDsnEnv)
		if err != nil {
			return nil, err
		}
		return NewPostgresqlStore(ctx, dsn, metrics)
	case MysqlStoreEngine:
		log.WithContext(ctx).Info("using MySQL store engine")
		dsn, err := dsnOrEnv(dsn, mysqlDsnEnv)
		if err != nil {
			return nil, err
		}
		return NewMysqlStore(ctx, dsn, metrics)
	default:
		return nil, fmt.Errorf("unsupported kind of store: %s", kind)
	}
}

func dsnOrEnv(dsn, env string) (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	dsn, ok := os.LookupEnv(env)
	if !ok || dsn == "" {
		return "", fmt.Errorf("%s is not set", env)
	}
	return dsn, nil
}

// NewTestStore is only used in tests. It creates an empty store of the engine set in NB_UPDATES_STORE_ENGINE,
// starting a database container for postgres and mysql.
func NewTestStore(ctx context.Context, dataDir string) (Store, func(), error) {
	kind := getStoreEngineFromEnv()

	switch kind {
	case PostgresStoreEngine:
		cleanUp, dsn, err := testutil.CreatePostgresTestContainer()
		if err != nil {
			return nil, nil, err
		}
		s, err := NewPostgresqlStore(ctx, dsn, nil)
		if err != nil {
			cleanUp()
			return nil, nil, err
		}
		return s, func() { _ = s.Close(ctx); cleanUp() }, nil
	case MysqlStoreEngine:
		cleanUp, dsn, err := testutil.CreateMysqlTestContainer()
		if err != nil {
			return nil, nil, err
		}
		s, err := NewMysqlStore(ctx, dsn, nil)
		if err != nil {
			cleanUp()
			return nil, nil, err
		}
		return s, func() { _ = s.Close(ctx); cleanUp() }, nil
	default:
		s, err := NewSqliteStore(ctx, dataDir, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(ctx) }, nil
	}
}
