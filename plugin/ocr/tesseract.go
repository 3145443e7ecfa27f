// Package ocr provides text detection for captured images using Tesseract.
// OCR is treated as an unreliable, slow external capability; all errors are
// wrapped and the caller decides how to degrade.
package ocr

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// maxImageBytes bounds downloaded media before it is handed to tesseract.
const maxImageBytes = 32 << 20

// Config holds the OCR configuration.
type Config struct {
	// TesseractPath is the path to the tesseract executable.
	TesseractPath string
	// DataPath is the path to the tessdata directory (optional).
	DataPath string
	// Languages are the languages to use for OCR (e.g., "eng").
	Languages string
}

// DefaultConfig returns the default OCR configuration.
func DefaultConfig() *Config {
	return &Config{
		TesseractPath: "tesseract",
		Languages:     "eng",
	}
}

// Client provides OCR functionality.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new OCR client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// DetectText extracts text from the image at the given locator, which is
// either a local file path or an http(s) URL. Returns empty text (no error)
// when the image contains no recognizable text.
func (c *Client) DetectText(ctx context.Context, locator string) (string, error) {
	image, err := c.fetch(ctx, locator)
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, image)
}

func (c *Client) fetch(ctx context.Context, locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build media request")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch media")
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("failed to fetch media: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read media body")
		}
		return data, nil
	}

	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read media file")
	}
	return data, nil
}

// extractText runs tesseract over the image bytes.
func (c *Client) extractText(ctx context.Context, image []byte) (string, error) {
	tmpFile, err := os.CreateTemp("", "ocr_*.png")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)
	tmpFile.Close()

	if err := os.WriteFile(tmpPath, image, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write temp file")
	}

	// Tesseract writes <out>.txt next to the output base path.
	outPath := strings.TrimSuffix(tmpPath, filepath.Ext(tmpPath))

	args := []string{tmpPath, outPath}
	if c.config.Languages != "" {
		args = append(args, "-l", c.config.Languages)
	}
	if c.config.DataPath != "" {
		args = append(args, "--tessdata-dir", c.config.DataPath)
	}

	cmd := exec.CommandContext(ctx, c.config.TesseractPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "tesseract command failed: %s", stderr.String())
	}

	txtPath := outPath + ".txt"
	defer os.Remove(txtPath)

	text, err := os.ReadFile(txtPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to read OCR output")
	}
	return strings.TrimSpace(string(text)), nil
}
