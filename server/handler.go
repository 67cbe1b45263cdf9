package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"

	"github.com/chaos-io/colourpop/compose"
	"github.com/chaos-io/colourpop/pipeline"
	"github.com/chaos-io/colourpop/segment"
	"github.com/chaos-io/colourpop/store"
	"github.com/chaos-io/colourpop/util"
)

var errBadRequest = errors.New("bad request")

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(gin.H{"status": "ok"}))
}

func (s *Server) models(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(gin.H{
		"models":  segment.Models,
		"options": s.opts,
	}))
}

type compositeResp struct {
	ID         string `json:"id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background bool   `json:"background"`
}

func (s *Server) composite(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fg, err := formImage(c, "image")
	if err != nil {
		fail(c, err)
		return
	}
	if fg == nil {
		fail(c, fmt.Errorf("%w: image is required", errBadRequest))
		return
	}
	bg, err := formImage(c, "background")
	if err != nil {
		fail(c, err)
		return
	}

	opts, err := s.formOptions(c)
	if err != nil {
		fail(c, err)
		return
	}

	out, _, err := pipeline.Process(c.Request.Context(), s.seg, opts, fg, bg)
	if err != nil {
		fail(c, err)
		return
	}

	if save, _ := strconv.ParseBool(c.Query("save")); save {
		id, _, err := s.store.Save(c.Request.Context(), out)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, jsend.Success(compositeResp{
			ID:         id,
			Width:      out.Rect.Dx(),
			Height:     out.Rect.Dy(),
			Background: bg != nil,
		}))
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) result(c *gin.Context) {
	path, err := s.store.Path(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.File(path)
}

// formImage 读取并解码上传的图片，字段不存在时返回 nil
func formImage(c *gin.Context, field string) (image.Image, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errBadRequest, field, err)
	}

	data, err := readFile(fh)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errBadRequest, field, err)
	}
	img, format, err := util.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errBadRequest, field, err)
	}

	slog.Debug("received image", "field", field, "format", format, "size", humanize.Bytes(uint64(fh.Size)))
	return img, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

func (s *Server) formOptions(c *gin.Context) (segment.Options, error) {
	opts := s.opts

	if v := c.PostForm("flip_horizontal"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: flip_horizontal: %w", errBadRequest, err)
		}
		opts.FlipHorizontal = b
	}
	if v := c.PostForm("internal_resolution"); v != "" {
		r, err := segment.ParseResolution(v)
		if err != nil {
			return opts, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		opts.InternalResolution = r
	}
	if v := c.PostForm("segmentation_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: segmentation_threshold: %w", errBadRequest, err)
		}
		opts.SegmentationThreshold = f
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return opts, nil
}

func statusOf(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, segment.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, compose.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, segment.ErrProviderFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		slog.Error("composite request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(code, jsend.SimpleErr(err.Error()))
}
