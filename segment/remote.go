package segment

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/chaos-io/colourpop/compose"
	nhttp "github.com/chaos-io/colourpop/util/http"
)

const segmentPath = "api/segment"

// RemoteSegmenter 通过 HTTP 调用远端的人像分割推理服务
type RemoteSegmenter struct {
	endpoint string
	model    ModelConfig
	timeout  time.Duration
	cli      nhttp.IClient
}

type RemoteOption func(*RemoteSegmenter)

func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteSegmenter) {
		r.timeout = d
	}
}

func WithClient(cli nhttp.IClient) RemoteOption {
	return func(r *RemoteSegmenter) {
		r.cli = cli
	}
}

func NewRemoteSegmenter(endpoint string, model ModelConfig, opts ...RemoteOption) (*RemoteSegmenter, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("validate model: %w", err)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	r := &RemoteSegmenter{
		endpoint: endpoint,
		model:    model,
		cli:      nhttp.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *RemoteSegmenter) Model() ModelConfig {
	return r.model
}

type segmentConfig struct {
	Model ModelConfig `json:"model"`
	Options
}

// maskResp 与人像分割结果同形：{"width":W,"height":H,"data":[0,1,...]}
// data 的元素可以是数字或布尔值
type maskResp struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Data   []maskEntry `json:"data"`
}

// maskEntry 按 truthy 解析：非 0 数字、true 为前景；0、false、null 为背景
type maskEntry bool

func (e *maskEntry) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	switch s {
	case "true":
		*e = true
		return nil
	case "false", "null":
		*e = false
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid mask entry %s", s)
	}
	*e = v != 0
	return nil
}

/*
	curl -X POST "$BASE_URL/api/segment" \
	  -F "image=@my_image.png" \
	  -F 'config={"model":{"architecture":"ResNet50",...},"internalResolution":"medium",...}'

{"width": 640, "height": 480, "data": [0, 0, 1, ...]}
*/
func (r *RemoteSegmenter) SegmentPerson(ctx context.Context, img image.Image, opts Options) (*compose.Mask, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// image 文件字段
	part, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	cfg, err := json.Marshal(segmentConfig{Model: r.model, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	_ = writer.WriteField("config", string(cfg))
	_ = writer.Close()

	slog.Debug("request segmentation", "endpoint", r.endpoint, "model", r.model.Architecture, "size", humanize.Bytes(uint64(body.Len())))

	resp := &maskResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: r.endpoint + segmentPath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
		Timeout:    r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if len(resp.Data) != resp.Width*resp.Height {
		return nil, fmt.Errorf("%w: response mask %dx%d has %d entries", compose.ErrDimensionMismatch, resp.Width, resp.Height, len(resp.Data))
	}

	m := compose.NewMask(resp.Width, resp.Height)
	for i, v := range resp.Data {
		if v {
			m.Data[i] = 1
		}
	}
	return m, nil
}
