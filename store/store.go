package store

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/colourpop/util"
)

const ext = ".png"

var ErrNotFound = errors.New("result not found")

// Store 合成结果落盘，文件名为 ksuid，天然按时间排序
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save 保存为 PNG，返回 id 和路径
func (s *Store) Save(ctx context.Context, img image.Image) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	id := ksuid.New().String()
	path := filepath.Join(s.dir, id+ext)
	if err := util.SaveImage(path, img); err != nil {
		return "", "", fmt.Errorf("save result: %w", err)
	}

	slog.Debug("saved result", "id", id, "path", path)
	return id, path, nil
}

// Render 实现 pipeline.Renderer
func (s *Store) Render(ctx context.Context, img *image.NRGBA) (string, error) {
	_, path, err := s.Save(ctx, img)
	return path, err
}

// Path 校验 id 并返回已存在结果的路径
func (s *Store) Path(id string) (string, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	path := filepath.Join(s.dir, id+ext)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return path, nil
}
