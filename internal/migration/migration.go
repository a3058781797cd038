package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Runner 按版本号顺序执行 NNN_name.sql 形式的迁移文件
// 每个迁移和版本号的更新在同一个事务中完成
type Runner struct {
	db *sql.DB
	fs fs.FS
}

func NewRunner(db *sql.DB, migrationFS fs.FS) *Runner {
	return &Runner{
		db: db,
		fs: migrationFS,
	}
}

func (r *Runner) ensureSchemaVersionTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`)
	return err
}

// CurrentVersion 返回数据库当前的版本，新数据库返回 0
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if err := r.ensureSchemaVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("无法创建 schema_version 表: %w", err)
	}

	var version int
	if err := r.db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

func (r *Runner) ReadMigrationFiles() ([]Migration, error) {
	return ReadMigrations(r.fs)
}

// ReadMigrations 读取并解析迁移文件，按版本号升序返回
func ReadMigrations(migrationFS fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("无法读取迁移目录: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		prefix, name, ok := strings.Cut(file.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("迁移文件名格式错误: %s", file.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version < 1 {
			return nil, fmt.Errorf("迁移文件 %s 的版本号无效", file.Name())
		}

		content, err := fs.ReadFile(migrationFS, file.Name())
		if err != nil {
			return nil, fmt.Errorf("无法读取迁移文件 %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(name, ".sql"),
			SQL:     string(content),
		})
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return a.Version - b.Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("迁移版本号 %d 重复", migrations[i].Version)
		}
	}

	return migrations, nil
}

// Apply 执行所有未执行的迁移，返回执行的数量
func (r *Runner) Apply(ctx context.Context) (int, error) {
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	migrations, err := r.ReadMigrationFiles()
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}

	latest := migrations[len(migrations)-1].Version
	if current > latest {
		return 0, fmt.Errorf("数据库版本 (%d) 比程序支持的版本 (%d) 更新，请升级程序", current, latest)
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		slog.Info("正在执行数据库迁移", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := r.applyOne(ctx, m); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("执行迁移 %d (%s) 失败: %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES ($1)", m.Version); err != nil {
		return err
	}

	return tx.Commit()
}
