package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/config"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/importer"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/model"
	"github.com/LittleCrime666/End-to-End-Valuation-Pipeline/internal/store"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status      string `json:"status"`
	Store       bool   `json:"store"`
	LastYear    int    `json:"lastYear,omitempty"`
	LastQuarter int    `json:"lastQuarter,omitempty"`
}

// Health 健康检查
// GET /api/health
func (s *Server) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		resp.Store = true
		if y, q, err := s.store.GetLastPeriod(); err == nil {
			resp.LastYear, resp.LastQuarter = y, q
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RunRequest 运行请求
type RunRequest struct {
	Year    int  `json:"year" binding:"required"`
	Quarter int  `json:"quarter" binding:"required"`
	Stream  bool `json:"stream"` // 以 SSE 推送进度
}

// StartRun 执行一次报告期运行
// POST /api/runs
func (s *Server) StartRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	rc, err := config.NewRunConfig(s.cfg, model.Period{Year: req.Year, Quarter: req.Quarter})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "已有运行正在进行"})
		return
	}
	defer s.runMu.Unlock()

	if req.Stream {
		s.streamRun(c, rc)
		return
	}

	out, err := s.runner.Run(c.Request.Context(), rc, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidConfig) || out == nil {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error(), "outcome": out})
		return
	}
	c.JSON(http.StatusOK, out)
}

// streamRun 以 SSE 推送运行进度，最后一条事件为 outcome 或 error
func (s *Server) streamRun(c *gin.Context, rc *config.RunConfig) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(event any) {
		data, err := json.Marshal(event)
		if err != nil {
			s.log.Warn("failed to encode event", zap.Error(err))
			return
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		flusher.Flush()
	}

	out, err := s.runner.Run(c.Request.Context(), rc, func(evt importer.ProgressEvent) {
		if evt.Type == "error" {
			// 错误内容以最后的 error 事件为准
			return
		}
		if evt.Type == "done" {
			evt.Data = nil
		}
		send(evt)
	})
	if err != nil {
		send(gin.H{"type": "error", "message": err.Error()})
		return
	}
	send(gin.H{"type": "outcome", "data": out})
}

// ListRuns 列出运行记录
// GET /api/runs?limit=50
func (s *Server) ListRuns(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := s.store.ListRunLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs, "total": len(logs)})
}

// GetRun 查询单次运行
// GET /api/runs/:id
func (s *Server) GetRun(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	log, err := s.store.GetRunLog(c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// ListRunFiles 列出单次运行的文件结果
// GET /api/runs/:id/files
func (s *Server) ListRunFiles(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id := c.Param("id")
	if _, err := s.store.GetRunLog(id); err != nil {
		s.storeError(c, err)
		return
	}
	files, err := s.store.ListRunFiles(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": files, "total": len(files)})
}

// ListPeriods 列出运行过的报告期
// GET /api/periods
func (s *Server) ListPeriods(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	periods, err := s.store.ListPeriods()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": periods})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "运行记录库未启用"})
		return false
	}
	return true
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
