package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/services"
	"courier/internal/textutil"
)

// extensionMime covers the formats the sniffer may miss on truncated or
// unusual files.
var extensionMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Inspector reads files and produces queue-ready items.
type Inspector struct {
	maxBytes int64
	maxPixel int
	logger   *slog.Logger
}

// NewInspector builds an inspector with the configured size and dimension
// limits. A zero size limit disables the cap; a zero pixel limit disables
// downscaling.
func NewInspector(cfg *config.Config, logger *slog.Logger) *Inspector {
	ins := &Inspector{
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
	if cfg != nil {
		ins.maxBytes = cfg.MaxFileSizeBytes()
		ins.maxPixel = cfg.Uploader.MaxPixelDimension
	}
	return ins
}

// Inspect reads the file at path and captures everything the queue needs:
// payload, checksum, MIME type, and pixel dimensions. Oversized jpeg/png
// payloads are downscaled when a pixel limit is configured.
func (ins *Inspector) Inspect(ctx context.Context, path string) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "inspect", "stat file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "ingest", "inspect",
			fmt.Sprintf("%s is a directory", path), nil)
	}
	if ins.maxBytes > 0 && info.Size() > ins.maxBytes {
		return nil, services.Wrap(services.ErrValidation, "ingest", "inspect",
			fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), ins.maxBytes), nil)
	}

	payload, checksum, err := ins.readAndHash(path)
	if err != nil {
		return nil, err
	}

	mime := detectMime(payload, path)

	item := &Item{
		SourcePath:     path,
		FileName:       textutil.SanitizeFileName(filepath.Base(path)),
		Size:           int64(len(payload)),
		MimeType:       mime,
		LastModifiedAt: info.ModTime().UTC(),
		Payload:        payload,
		Checksum:       checksum,
	}

	if strings.HasPrefix(mime, "image/") {
		item.Width, item.Height = decodeDimensions(payload)
	}

	if ins.shouldDownscale(item) {
		ins.downscale(item)
	}

	return item, nil
}

// readAndHash streams the file through the checksum so the payload and its
// hash come from the same read.
func (ins *Inspector) readAndHash(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "ingest", "inspect", "open file", err)
	}
	defer f.Close()

	hasher := sha256.New()
	var buf bytes.Buffer

	reader := io.Reader(f)
	if ins.maxBytes > 0 {
		reader = io.LimitReader(f, ins.maxBytes+1)
	}

	n, err := buf.ReadFrom(io.TeeReader(reader, hasher))
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "ingest", "inspect", "read file", err)
	}
	if ins.maxBytes > 0 && n > ins.maxBytes {
		return nil, "", services.Wrap(services.ErrValidation, "ingest", "inspect",
			fmt.Sprintf("file grew past the %d byte limit while reading", ins.maxBytes), nil)
	}

	return buf.Bytes(), hex.EncodeToString(hasher.Sum(nil)), nil
}

func (ins *Inspector) shouldDownscale(item *Item) bool {
	if ins.maxPixel <= 0 {
		return false
	}
	if item.MimeType != "image/jpeg" && item.MimeType != "image/png" {
		return false
	}
	return item.Width > ins.maxPixel || item.Height > ins.maxPixel
}

// downscale shrinks the payload to fit the pixel limit and refreshes every
// field derived from the bytes. A decode or encode failure keeps the original
// payload; the upload still proceeds at full size.
func (ins *Inspector) downscale(item *Item) {
	img, err := imaging.Decode(bytes.NewReader(item.Payload))
	if err != nil {
		ins.logger.Warn("could not decode image for downscaling, uploading original",
			logging.Error(err),
			logging.String(logging.FieldFileName, item.FileName),
			logging.String(logging.FieldEventType, "downscale_skipped"),
		)
		return
	}

	resized := imaging.Fit(img, ins.maxPixel, ins.maxPixel, imaging.Lanczos)

	var format imaging.Format
	switch item.MimeType {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		ins.logger.Warn("could not encode downscaled image, uploading original",
			logging.Error(err),
			logging.String(logging.FieldFileName, item.FileName),
			logging.String(logging.FieldEventType, "downscale_skipped"),
		)
		return
	}

	bounds := resized.Bounds()
	sum := sha256.Sum256(buf.Bytes())

	ins.logger.Debug("downscaled image before queueing",
		logging.String(logging.FieldFileName, item.FileName),
		logging.Int("original_width", item.Width),
		logging.Int("original_height", item.Height),
		logging.Int("width", bounds.Dx()),
		logging.Int("height", bounds.Dy()),
		logging.Int64("original_size_bytes", item.Size),
		logging.Int64("file_size_bytes", int64(buf.Len())),
	)

	item.Payload = buf.Bytes()
	item.Size = int64(buf.Len())
	item.Width = bounds.Dx()
	item.Height = bounds.Dy()
	item.Checksum = hex.EncodeToString(sum[:])
}

// detectMime sniffs content first and falls back to the extension table when
// sniffing is inconclusive.
func detectMime(payload []byte, path string) string {
	detected := mimetype.Detect(payload).String()
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = strings.TrimSpace(detected[:idx])
	}
	if detected == "" || detected == "application/octet-stream" {
		if fallback, ok := extensionMime[strings.ToLower(filepath.Ext(path))]; ok {
			return fallback
		}
	}
	if detected == "" {
		return "application/octet-stream"
	}
	return detected
}

// decodeDimensions reads just the image header. Unknown or corrupt formats
// yield zero dimensions rather than an error.
func decodeDimensions(payload []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
