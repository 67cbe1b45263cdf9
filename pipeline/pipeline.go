package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/chaos-io/colourpop/compose"
	"github.com/chaos-io/colourpop/segment"
	"github.com/chaos-io/colourpop/util"
)

var ErrSuperseded = errors.New("superseded by a newer selection")

// Loader 读取原始文件内容（本地路径或 URL）
type Loader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

type LoaderFunc func(ctx context.Context, src string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, src string) ([]byte, error) {
	return f(ctx, src)
}

// Renderer 输出合成结果，返回结果位置
type Renderer interface {
	Render(ctx context.Context, img *image.NRGBA) (string, error)
}

type Result struct {
	Path       string
	Width      int
	Height     int
	Background bool
}

type slot struct {
	gen    uint64
	cancel context.CancelFunc
}

// Pipeline 前景：loadFile -> decodeImage -> drawToBuffer -> requestMask -> composite -> render
// 新的前景选择会取消正在进行的那一次；背景变化只重新合成，复用已缓存的 mask
type Pipeline struct {
	seg      segment.Segmenter
	opts     segment.Options
	loader   Loader
	renderer Renderer

	mu    sync.Mutex
	fgRun slot
	bgRun slot
	fg    *image.NRGBA
	mask  *compose.Mask
	bg    image.Image
}

type Option func(*Pipeline)

func WithLoader(l Loader) Option {
	return func(p *Pipeline) {
		p.loader = l
	}
}

func New(seg segment.Segmenter, opts segment.Options, renderer Renderer, options ...Option) *Pipeline {
	p := &Pipeline{
		seg:      seg,
		opts:     opts,
		loader:   LoaderFunc(util.ReadSource),
		renderer: renderer,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// SelectForeground 处理新的前景图
func (p *Pipeline) SelectForeground(ctx context.Context, src string) (*Result, error) {
	runCtx, gen := p.begin(ctx, &p.fgRun)
	defer p.end(&p.fgRun, gen)

	img, err := p.load(runCtx, src)
	if err != nil {
		return nil, superseded(ctx, runCtx, err)
	}

	buf := compose.ToBuffer(img)
	if err := runCtx.Err(); err != nil {
		return nil, superseded(ctx, runCtx, err)
	}

	m, err := segment.Segment(runCtx, p.seg, buf, p.opts)
	if err != nil {
		return nil, superseded(ctx, runCtx, fmt.Errorf("segment %s: %w", src, err))
	}

	p.mu.Lock()
	if gen != p.fgRun.gen {
		p.mu.Unlock()
		return nil, ErrSuperseded
	}
	p.fg, p.mask = buf, m
	bg := p.bg
	p.mu.Unlock()

	res, err := p.render(runCtx, buf, m, bg)
	return res, superseded(ctx, runCtx, err)
}

// SelectBackground 加载背景图；已有前景时立即重新合成，否则返回 nil
func (p *Pipeline) SelectBackground(ctx context.Context, src string) (*Result, error) {
	runCtx, gen := p.begin(ctx, &p.bgRun)
	defer p.end(&p.bgRun, gen)

	img, err := p.load(runCtx, src)
	if err != nil {
		return nil, superseded(ctx, runCtx, err)
	}

	p.mu.Lock()
	if gen != p.bgRun.gen {
		p.mu.Unlock()
		return nil, ErrSuperseded
	}
	p.bg = img
	fg, m := p.fg, p.mask
	p.mu.Unlock()

	if fg == nil {
		return nil, nil
	}
	res, err := p.render(runCtx, fg, m, img)
	return res, superseded(ctx, runCtx, err)
}

// ClearBackground 回到灰度模式
func (p *Pipeline) ClearBackground(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	if p.bgRun.cancel != nil {
		p.bgRun.cancel()
	}
	p.bgRun.gen++
	p.bg = nil
	fg, m := p.fg, p.mask
	p.mu.Unlock()

	if fg == nil {
		return nil, nil
	}
	return p.render(ctx, fg, m, nil)
}

func (p *Pipeline) begin(ctx context.Context, s *slot) (context.Context, uint64) {
	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return runCtx, s.gen
}

func (p *Pipeline) end(s *slot, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// load = loadFile + decodeImage
func (p *Pipeline) load(ctx context.Context, src string) (image.Image, error) {
	data, err := p.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := util.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}

	b := img.Bounds()
	slog.Debug("loaded image", "src", src, "format", format, "width", b.Dx(), "height", b.Dy(), "size", humanize.Bytes(uint64(len(data))))
	return img, nil
}

func (p *Pipeline) render(ctx context.Context, fg *image.NRGBA, m *compose.Mask, bg image.Image) (*Result, error) {
	out, err := composite(fg, m, bg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := p.renderer.Render(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	return &Result{
		Path:       path,
		Width:      out.Rect.Dx(),
		Height:     out.Rect.Dy(),
		Background: bg != nil,
	}, nil
}

// superseded 区分调用方取消和被新的选择取消
func superseded(parent, run context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() == nil && run.Err() != nil {
		return fmt.Errorf("%w: %w", ErrSuperseded, err)
	}
	return err
}
