package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"
)

// Sweeper 定时清理超过保留期的结果
type Sweeper struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewSweeper(s *Store, retention time.Duration, spec string) (*Sweeper, error) {
	sw := &Sweeper{
		store:     s,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := sw.cron.AddFunc(spec, func() {
		if _, err := sw.Sweep(); err != nil {
			slog.Error("sweep results", "err", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("add sweep job %q: %w", spec, err)
	}
	return sw, nil
}

func (sw *Sweeper) Start() {
	sw.cron.Start()
}

// Stop 停止调度并等待正在运行的清理结束
func (sw *Sweeper) Stop() {
	<-sw.cron.Stop().Done()
}

// Sweep 删除过期结果，返回删除数量
// 时间取自 ksuid 中的时间戳，不是文件 mtime
func (sw *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(sw.store.dir)
	if err != nil {
		return 0, err
	}

	deadline := sw.now().Add(-sw.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		id, err := ksuid.Parse(strings.TrimSuffix(e.Name(), ext))
		if err != nil {
			continue
		}
		if !id.Time().Before(deadline) {
			continue
		}
		if err := os.Remove(filepath.Join(sw.store.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		slog.Info("swept results", "removed", removed, "dir", sw.store.dir)
	}
	return removed, nil
}
