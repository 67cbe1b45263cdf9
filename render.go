package main

import (
	"context"
	"image"
	"path/filepath"
	"strings"

	"github.com/chaos-io/colourpop/util"
)

// fileRenderer 写到指定文件，格式由扩展名决定
type fileRenderer struct {
	path string
}

func (f *fileRenderer) Render(ctx context.Context, img *image.NRGBA) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.path, util.SaveImage(f.path, img)
}

// variantPath out.png -> out.gray.png
func variantPath(path, variant string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + variant + ext
}
