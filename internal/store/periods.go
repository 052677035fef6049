package store

import "fmt"

// PeriodStat 报告期的运行统计
type PeriodStat struct {
	Year       int    `json:"year"`
	Quarter    int    `json:"quarter"`
	Runs       int    `json:"runs"`
	LastStatus string `json:"lastStatus"`
	LastOutput string `json:"lastOutput"`
	Records    int    `json:"records"` // 最近一次成功写出的记录数
}

// ListPeriods 列出运行过的报告期（按年/季度倒序）
func (s *Store) ListPeriods() ([]PeriodStat, error) {
	rows, err := s.db.Query(`
		WITH p AS (
			SELECT data_year AS y, data_quarter AS q, COUNT(1) AS runs
			FROM run_logs
			GROUP BY data_year, data_quarter
		)
		SELECT
			p.y,
			p.q,
			p.runs,
			COALESCE((SELECT status FROM run_logs
				WHERE data_year = p.y AND data_quarter = p.q
				ORDER BY started_at DESC, rowid DESC LIMIT 1), ''),
			COALESCE((SELECT output_path FROM run_logs
				WHERE data_year = p.y AND data_quarter = p.q AND status = 'written'
				ORDER BY started_at DESC, rowid DESC LIMIT 1), ''),
			COALESCE((SELECT merged_records FROM run_logs
				WHERE data_year = p.y AND data_quarter = p.q AND status = 'written'
				ORDER BY started_at DESC, rowid DESC LIMIT 1), 0)
		FROM p
		ORDER BY p.y DESC, p.q DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query periods failed: %w", err)
	}
	defer rows.Close()

	out := []PeriodStat{}
	for rows.Next() {
		var it PeriodStat
		if err := rows.Scan(&it.Year, &it.Quarter, &it.Runs, &it.LastStatus, &it.LastOutput, &it.Records); err != nil {
			return nil, fmt.Errorf("scan period failed: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods failed: %w", err)
	}
	return out, nil
}
