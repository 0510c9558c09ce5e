package imageprep

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/docverify/internal/core/domain"
)

const (
	defaultMaxDimension = 1024
	defaultSharpenSigma = 1.0
	// Fraction of pixels clipped at each end of the histogram during normalization.
	normalizeClip = 0.005
	// Largest accepted width*height, checked from the header before decoding.
	maxInputPixels = 0x3FFF * 0x3FFF
)

type Options struct {
	MaxWidth     int
	MaxHeight    int
	SharpenSigma float64
	Logger       *slog.Logger
}

// Processor normalizes document images into the scratch directory and
// inspects their quality. Output files are owned by the scratch sweep.
type Processor struct {
	scratchDir   string
	maxWidth     int
	maxHeight    int
	sharpenSigma float64
	logger       *slog.Logger
	now          func() time.Time
}

func New(scratchDir string, options Options) (*Processor, error) {
	if scratchDir == "" {
		scratchDir = "./data/scratch"
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	p := &Processor{
		scratchDir:   scratchDir,
		maxWidth:     options.MaxWidth,
		maxHeight:    options.MaxHeight,
		sharpenSigma: options.SharpenSigma,
		logger:       options.Logger,
		now:          time.Now,
	}
	if p.maxWidth <= 0 {
		p.maxWidth = defaultMaxDimension
	}
	if p.maxHeight <= 0 {
		p.maxHeight = defaultMaxDimension
	}
	if p.sharpenSigma <= 0 {
		p.sharpenSigma = defaultSharpenSigma
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

func (p *Processor) ScratchDir() string { return p.scratchDir }

// Preprocess writes a bounded, contrast-normalized, sharpened PNG copy of the
// input. The input is never modified and no output is left behind on failure.
func (p *Processor) Preprocess(ctx context.Context, inputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := decodeFile(inputPath)
	if err != nil {
		return "", err
	}

	out := fitWithin(src, p.maxWidth, p.maxHeight)
	out = normalizeContrast(out)
	out = imaging.Sharpen(out, p.sharpenSigma)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("preprocessed_%d_%s.png", p.now().UnixNano(), uuid.NewString()[:8])
	outputPath := filepath.Join(p.scratchDir, name)
	if err := writePNG(p.scratchDir, outputPath, out); err != nil {
		return "", err
	}
	return outputPath, nil
}

// InspectQuality reads only the image header and file size.
func (p *Processor) InspectQuality(ctx context.Context, path string) (domain.QualityReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.QualityReport{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.QualityReport{}, domain.WrapError(domain.ErrImageDecode, "open image", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return domain.QualityReport{}, domain.WrapError(domain.ErrImageDecode, "decode image header", err)
	}
	info, err := f.Stat()
	if err != nil {
		return domain.QualityReport{}, domain.WrapError(domain.ErrImageDecode, "stat image", err)
	}

	return domain.AssessQuality(domain.DocumentImage{
		Path:      path,
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		SizeBytes: info.Size(),
	}), nil
}

// SweepExpired removes scratch entries older than maxAge. Individual removal
// failures are logged and skipped.
func (p *Processor) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(p.scratchDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.WrapError(domain.ErrStorage, "read scratch dir", err)
	}

	cutoff := p.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed concurrently or unreadable; either way not ours to fail on.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(p.scratchDir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("scratch_sweep_remove_failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrImageDecode, "open image", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, domain.WrapError(domain.ErrImageDecode, "decode image header", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxInputPixels {
		return nil, domain.WrapError(domain.ErrImageDecode, "decode image",
			fmt.Errorf("%dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, maxInputPixels))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, domain.WrapError(domain.ErrImageDecode, "rewind image", err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, domain.WrapError(domain.ErrImageDecode, "decode image", err)
	}
	return img, nil
}

func writePNG(dir, outputPath string, img image.Image) error {
	tmp, err := os.CreateTemp(dir, ".preprocess-*.tmp")
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "create scratch file", err)
	}
	tmpPath := tmp.Name()

	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return domain.WrapError(domain.ErrStorage, "encode png", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return domain.WrapError(domain.ErrStorage, "close scratch file", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return domain.WrapError(domain.ErrStorage, "publish scratch file", err)
	}
	return nil
}

// fitWithin scales img down to fit inside maxW x maxH preserving aspect ratio.
// Images already inside the box are returned as is.
func fitWithin(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	targetW := max(1, int(math.Round(float64(w)*scale)))
	targetH := max(1, int(math.Round(float64(h)*scale)))

	dst := image.NewNRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// normalizeContrast stretches luminance so the clipped histogram spans 0..255.
func normalizeContrast(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)

	var hist [256]int
	total := 0
	for i := 0; i+3 < len(src.Pix); i += 4 {
		hist[luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2])]++
		total++
	}
	if total == 0 {
		return src
	}

	clip := int(float64(total) * normalizeClip)
	low, high := 0, 255
	for acc := 0; low < 255; low++ {
		acc += hist[low]
		if acc > clip {
			break
		}
	}
	for acc := 0; high > 0; high-- {
		acc += hist[high]
		if acc > clip {
			break
		}
	}
	if high <= low {
		return src
	}

	scale := 255.0 / float64(high-low)
	stretch := func(v uint8) uint8 {
		x := (float64(v) - float64(low)) * scale
		switch {
		case x <= 0:
			return 0
		case x >= 255:
			return 255
		default:
			return uint8(x + 0.5)
		}
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

func luminance(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}
