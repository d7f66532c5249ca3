package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// SQLConfig 描述 MySQL 会话存储的连接参数。
type SQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore 使用 MySQL 持久化会话。整个会话状态以 JSON 文档
// 存储，消息历史内嵌其中，按会话编号整体读写。
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore 创建连接池并初始化数据表。
func NewSQLStore(cfg SQLConfig) (*SQLStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	store := &SQLStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS sessions (
        id VARCHAR(64) PRIMARY KEY,
        mobile VARCHAR(32) NOT NULL DEFAULT '',
        active_agent VARCHAR(64) NOT NULL DEFAULT '',
        state JSON NOT NULL,
        created_at BIGINT NOT NULL,
        last_active BIGINT NOT NULL,
        INDEX idx_last_active (last_active)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("初始化 sessions 表失败: %w", err)
	}
	return nil
}

// Get 实现 Store 接口。
func (s *SQLStore) Get(ctx context.Context, id string) (*Session, error) {
	const query = `SELECT state FROM sessions WHERE id = ?`
	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("解析会话状态失败: %w", err)
	}
	return &sess, nil
}

// Save 实现 Store 接口。按会话编号整体覆盖。
func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("序列化会话状态失败: %w", err)
	}

	const stmt = `INSERT INTO sessions (id, mobile, active_agent, state, created_at, last_active)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE mobile = VALUES(mobile), active_agent = VALUES(active_agent),
state = VALUES(state), last_active = VALUES(last_active)`

	if _, err := s.db.ExecContext(ctx, stmt,
		sess.ID,
		sess.Mobile,
		sess.ActiveAgent,
		raw,
		sess.CreatedAt.Unix(),
		sess.LastActive.Unix(),
	); err != nil {
		return fmt.Errorf("写入会话失败: %w", err)
	}
	return nil
}

// Touch 实现 Store 接口。只更新活跃时间戳，不回写状态文档。
func (s *SQLStore) Touch(ctx context.Context, id string, at time.Time) error {
	const stmt = `UPDATE sessions SET last_active = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("更新会话活跃时间失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("确认会话更新失败: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
