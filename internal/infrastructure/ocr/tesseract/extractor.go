package tesseract

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/kirillkom/docverify/internal/core/domain"
)

const defaultLanguage = "eng"

// client is the subset of *gosseract.Client the extractor drives.
type client interface {
	SetLanguage(langs ...string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	SetImage(path string) error
	Text() (string, error)
	Close() error
}

type Options struct {
	Languages []string
	// Zero selects a single uniform block of text.
	PageSegMode gosseract.PageSegMode
}

// Extractor runs Tesseract over a single image and returns its plain text.
// A fresh client is used per call, so concurrent calls do not share state.
type Extractor struct {
	languages     []string
	pageSegMode   gosseract.PageSegMode
	clientFactory func() client
}

func NewExtractor(options Options) *Extractor {
	languages := options.Languages
	if len(languages) == 0 {
		languages = []string{defaultLanguage}
	}
	mode := options.PageSegMode
	if mode == 0 {
		mode = gosseract.PSM_SINGLE_BLOCK
	}
	return &Extractor{
		languages:     languages,
		pageSegMode:   mode,
		clientFactory: func() client { return gosseract.NewClient() },
	}
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "set languages", err)
	}
	if err := c.SetPageSegMode(e.pageSegMode); err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "set page segmentation", err)
	}
	if err := c.SetImage(path); err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "set image", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "recognize text", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
