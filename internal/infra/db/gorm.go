package db

import (
	"strings"
	"time"

	"preorder/internal/config"
	"preorder/internal/domain/model"

	"github.com/cockroachdb/errors"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		gdb, err = openPostgres(cfg.URL, gormCfg)
	case "mysql":
		gdb, err = gorm.Open(mysql.Open(mysqlDSN(cfg.URL)), gormCfg)
	case "sqlite", "":
		gdb, err = OpenSQLite(cfg.Path)
	default:
		return nil, errors.Newf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Driver)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	if cfg.Driver != "sqlite" && cfg.Driver != "" {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	return gdb, nil
}

// DSNはpgxで先に検証し、pgxのsql.DBをそのままGORMに渡す
func openPostgres(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	pgxCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}
	sqlDB := stdlib.OpenDB(*pgxCfg)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
}

// OpenSQLite はcgo不要のドライバでSQLiteを開く。
// 書き込みは1本の接続に寄せて SQLITE_BUSY を避ける。
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

// Migrate はテーブルを作成・更新する
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&model.Order{}, &model.AuditLog{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// 同じ値への UPDATE でも RowsAffected が 0 にならないようにする
func mysqlDSN(dsn string) string {
	if strings.Contains(dsn, "clientFoundRows") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "clientFoundRows=true"
	if !strings.Contains(dsn, "parseTime") {
		dsn += "&parseTime=true"
	}
	return dsn
}
