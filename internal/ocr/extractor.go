// Package ocr extracts text from images embedded in PDF documents.
//
// Extraction is optional. Detect picks the Tesseract extractor when the
// poppler pdfimages tool and the tesseract binary are on PATH, and Noop
// otherwise, so callers never branch on what is installed.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bull/docchat/internal/domain"
)

// Extractor produces one text unit per embedded image with recognisable text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, pdfPath, source string) ([]domain.TextUnit, error)
}

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Detect returns the best extractor available on this host.
func Detect(logger *slog.Logger) Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	for _, bin := range []string{"pdfimages", "tesseract"} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Info("Image OCR disabled", "missing", bin)
			return Noop{}
		}
	}
	return NewTesseract(ExecRunner{}, logger)
}

// Noop extracts nothing.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Extract(context.Context, string, string) ([]domain.TextUnit, error) {
	return nil, nil
}

// Tesseract dumps images with pdfimages and recognises each with tesseract.
type Tesseract struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewTesseract creates a Tesseract extractor that runs commands through runner.
func NewTesseract(runner CommandRunner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return "tesseract" }

// pdfimages -p names files <root>-<page>-<image>.png
var imageName = regexp.MustCompile(`-(\d+)-(\d+)\.png$`)

type pageImage struct {
	path  string
	page  int
	order int
}

// Extract returns units tagged image_ocr. A failing image is logged and skipped.
func (t *Tesseract) Extract(ctx context.Context, pdfPath, source string) ([]domain.TextUnit, error) {
	dir, err := os.MkdirTemp("", "docchat-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// 1. Dump embedded images
	if _, err := t.runner.Run(ctx, "pdfimages", "-p", "-png", pdfPath, filepath.Join(dir, "img")); err != nil {
		return nil, fmt.Errorf("dump images: %w", err)
	}

	images, err := listImages(dir)
	if err != nil {
		return nil, err
	}

	// 2. Recognise each image, numbering images within their page from 1
	var units []domain.TextUnit
	perPage := make(map[int]int)
	for _, img := range images {
		perPage[img.page]++
		index := perPage[img.page]

		out, err := t.runner.Run(ctx, "tesseract", img.path, "stdout")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.logger.Warn("OCR failed for image", "page", img.page, "image", index, "error", err)
			continue
		}
		text := strings.TrimSpace(string(out))
		if text == "" {
			continue
		}
		units = append(units, domain.TextUnit{
			Content:    fmt.Sprintf("[Image OCR on page %d]\n%s", img.page, text),
			Page:       img.page,
			Source:     source,
			Origin:     domain.OriginImageOCR,
			ImageIndex: index,
		})
	}
	return units, nil
}

func listImages(dir string) ([]pageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}

	var images []pageImage
	for _, e := range entries {
		m := imageName.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		page, _ := strconv.Atoi(m[1])
		order, _ := strconv.Atoi(m[2])
		images = append(images, pageImage{path: filepath.Join(dir, e.Name()), page: page, order: order})
	}
	sort.Slice(images, func(i, j int) bool {
		if images[i].page != images[j].page {
			return images[i].page < images[j].page
		}
		return images[i].order < images[j].order
	})
	return images, nil
}
