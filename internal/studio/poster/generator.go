package poster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
)

// DefaultSize is used when a request names no size or an unknown one.
const DefaultSize = "1024x1024"

var allowedSizes = map[string]struct{}{
	"256x256":   {},
	"512x512":   {},
	"1024x1024": {},
	"1024x1792": {},
	"1792x1024": {},
}

var ErrGenerate = errors.New("poster: generation failed")

type Request struct {
	Prompt string
	Style  string
	Size   string
}

type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Generator turns a prompt into an image.
type Generator interface {
	Generate(ctx context.Context, req Request) (Image, error)
}

// ParseSize normalises size to an allowed "WxH" value and returns its
// dimensions.
func ParseSize(size string) (string, int, int) {
	size = strings.ToLower(strings.TrimSpace(size))
	if _, ok := allowedSizes[size]; !ok {
		size = DefaultSize
	}
	w, h, _ := strings.Cut(size, "x")
	width, _ := strconv.Atoi(w)
	height, _ := strconv.Atoi(h)
	return size, width, height
}

// PlaceholderGenerator renders deterministic banded PNGs seeded by the
// prompt. It stands in for an image model in development and tests.
type PlaceholderGenerator struct{}

func (PlaceholderGenerator) Generate(ctx context.Context, req Request) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	_, w, h := ParseSize(req.Size)

	seed := fnv.New32a()
	_, _ = seed.Write([]byte(req.Style + "|" + req.Prompt))
	sum := seed.Sum32()

	palette := make(color.Palette, 8)
	for i := range palette {
		shift := uint32(i) * 24
		palette[i] = color.RGBA{
			R: uint8(sum>>16) + uint8(shift),
			G: uint8(sum>>8) + uint8(shift/2),
			B: uint8(sum) + uint8(shift/3),
			A: 0xff,
		}
	}

	img := image.NewPaletted(image.Rect(0, 0, w, h), palette)
	band := h / len(palette)
	for y := range h {
		idx := uint8(min(y/band, len(palette)-1))
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := range row {
			row[x] = idx
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("%w: encode png: %v", ErrGenerate, err)
	}
	return Image{Data: buf.Bytes(), ContentType: "image/png", Width: w, Height: h}, nil
}
