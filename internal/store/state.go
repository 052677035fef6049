package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// GetState 获取状态项
func (s *Store) GetState(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("state key %s: %w", key, ErrNotFound)
		}
		return "", err
	}
	return value, nil
}

// SetState 设置状态项
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// GetLastPeriod 获取最近一次成功写出的报告期
func (s *Store) GetLastPeriod() (year, quarter int, err error) {
	y, err := s.GetState("last_year")
	if err != nil {
		return 0, 0, err
	}
	q, err := s.GetState("last_quarter")
	if err != nil {
		return 0, 0, err
	}
	if year, err = strconv.Atoi(y); err != nil {
		return 0, 0, fmt.Errorf("invalid last_year: %w", err)
	}
	if quarter, err = strconv.Atoi(q); err != nil {
		return 0, 0, fmt.Errorf("invalid last_quarter: %w", err)
	}
	return year, quarter, nil
}

// SetLastPeriod 记录最近一次成功写出的报告期
func (s *Store) SetLastPeriod(year, quarter int) error {
	if err := s.SetState("last_year", strconv.Itoa(year)); err != nil {
		return err
	}
	return s.SetState("last_quarter", strconv.Itoa(quarter))
}
