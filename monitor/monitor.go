package monitor

import (
	"bufio"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLines = 200
	maxLogLines     = 2000
)

// Monitor serves process status and the tail of the application log.
type Monitor struct {
	logPath string
	started time.Time
	now     func() time.Time
}

func New(logPath string) *Monitor {
	return &Monitor{logPath: logPath, started: time.Now(), now: time.Now}
}

// Register mounts the monitor endpoints on an already protected group.
func (m *Monitor) Register(group *gin.RouterGroup) {
	group.GET("/status", m.Status)
	group.GET("/logs", m.Logs)
}

func (m *Monitor) Status(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"started_at":     m.started,
		"uptime_seconds": int64(m.now().Sub(m.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     mem.HeapAlloc,
		"go_version":     runtime.Version(),
	}})
}

// Logs returns the last ?lines= lines of the log file.
func (m *Monitor) Logs(c *gin.Context) {
	if m.logPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "File logging is disabled"})
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("lines", strconv.Itoa(defaultLogLines)))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lines must be a positive number"})
		return
	}
	if n > maxLogLines {
		n = maxLogLines
	}

	lines, err := tail(m.logPath, n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lines, "total": len(lines)})
}

// tail keeps the last n lines of the file in a ring.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	start := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) < n {
			ring = append(ring, sc.Text())
			continue
		}
		ring[start] = sc.Text()
		start = (start + 1) % n
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return append(ring[start:], ring[:start]...), nil
}
