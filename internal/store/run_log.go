package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// 运行状态
const (
	RunStatusRunning     = "running"
	RunStatusWritten     = "written"
	RunStatusNothingToDo = "nothing_to_do"
	RunStatusFailed      = "failed"
)

// RunLog 一次运行的记录
type RunLog struct {
	ID            string     `json:"id"`
	Year          int        `json:"year"`
	Quarter       int        `json:"quarter"`
	ExchangeRate  float64    `json:"exchangeRate"`
	TotalFiles    int        `json:"totalFiles"`
	NewFiles      int        `json:"newFiles"`
	SkippedFiles  int        `json:"skippedFiles"`
	FailedFiles   int        `json:"failedFiles"`
	MergedRecords int        `json:"mergedRecords"`
	OutputPath    string     `json:"outputPath"`
	Status        string     `json:"status"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// RunCompletion 运行结束时回写的统计
type RunCompletion struct {
	TotalFiles    int
	NewFiles      int
	SkippedFiles  int
	FailedFiles   int
	MergedRecords int
	OutputPath    string
	Status        string
	ErrorMessage  string
}

// RunFile 单个文件的处理记录
type RunFile struct {
	RunID      string `json:"runId"`
	FileName   string `json:"fileName"`
	Status     string `json:"status"`
	EntityCode string `json:"entityCode,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// CreateRunLog 创建运行记录
func (s *Store) CreateRunLog(id string, year, quarter int, rate float64) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (id, data_year, data_quarter, exchange_rate, status)
		VALUES (?, ?, ?, ?, ?)
	`, id, year, quarter, rate, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	return nil
}

// CompleteRunLog 完成运行记录
func (s *Store) CompleteRunLog(id string, c RunCompletion) error {
	res, err := s.db.Exec(`
		UPDATE run_logs SET
			total_files = ?,
			new_files = ?,
			skipped_files = ?,
			failed_files = ?,
			merged_records = ?,
			output_path = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, c.TotalFiles, c.NewFiles, c.SkippedFiles, c.FailedFiles, c.MergedRecords,
		c.OutputPath, c.Status, c.ErrorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update run log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run log %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertRunFiles 批量写入文件处理记录
func (s *Store) InsertRunFiles(files []RunFile) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_files (run_id, file_name, status, entity_code, reason, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.Exec(f.RunID, f.FileName, f.Status, f.EntityCode, f.Reason, f.DurationMS); err != nil {
			return fmt.Errorf("failed to insert run file %s: %w", f.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const runLogColumns = `
	id, data_year, data_quarter, exchange_rate,
	total_files, new_files, skipped_files, failed_files, merged_records,
	output_path, status, error_message, started_at, completed_at`

func scanRunLog(sc interface{ Scan(...any) error }) (RunLog, error) {
	var (
		it        RunLog
		completed sql.NullTime
	)
	err := sc.Scan(
		&it.ID, &it.Year, &it.Quarter, &it.ExchangeRate,
		&it.TotalFiles, &it.NewFiles, &it.SkippedFiles, &it.FailedFiles, &it.MergedRecords,
		&it.OutputPath, &it.Status, &it.ErrorMessage, &it.StartedAt, &completed,
	)
	if err != nil {
		return it, err
	}
	if completed.Valid {
		t := completed.Time
		it.CompletedAt = &t
	}
	return it, nil
}

// GetRunLog 查询单条运行记录
func (s *Store) GetRunLog(id string) (*RunLog, error) {
	row := s.db.QueryRow(`SELECT `+runLogColumns+` FROM run_logs WHERE id = ?`, id)
	it, err := scanRunLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run log %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}
	return &it, nil
}

// ListRunLogs 按开始时间倒序列出运行记录
func (s *Store) ListRunLogs(limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runLogColumns+` FROM run_logs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run logs failed: %w", err)
	}
	defer rows.Close()

	out := []RunLog{}
	for rows.Next() {
		it, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run log failed: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run logs failed: %w", err)
	}
	return out, nil
}

// ListRunFiles 列出某次运行的文件记录
func (s *Store) ListRunFiles(runID string) ([]RunFile, error) {
	rows, err := s.db.Query(`
		SELECT run_id, file_name, status, entity_code, reason, duration_ms
		FROM run_files WHERE run_id = ? ORDER BY file_name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run files failed: %w", err)
	}
	defer rows.Close()

	out := []RunFile{}
	for rows.Next() {
		var f RunFile
		if err := rows.Scan(&f.RunID, &f.FileName, &f.Status, &f.EntityCode, &f.Reason, &f.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run file failed: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run files failed: %w", err)
	}
	return out, nil
}
