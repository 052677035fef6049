package exporter

// ProgressEvent 写入进度事件
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
	Rows    int    `json:"rows"` // 当前阶段写入的行数（不含表头）
}

// progressFunc 进度回调，nil 时忽略
type progressFunc func(ProgressEvent)

func (p progressFunc) report(percent int, stage string, rows int) {
	if p == nil {
		return
	}
	p(ProgressEvent{
		Percent: min(max(percent, 0), 100),
		Stage:   stage,
		Rows:    rows,
	})
}
