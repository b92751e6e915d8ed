// Package media generates resized variants of uploaded images.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/lotes/backend/internal/domain/shared"
	"github.com/lotes/backend/internal/infrastructure/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const thumbsDir = "thumbs"

// DefaultWidths are the widths every uploaded image is resized to
var DefaultWidths = []int{350, 750, 1536, 2048, 4608}

// Variant is one output size
type Variant struct {
	Prefix string
	Width  int
	Square bool
}

// Variants expands widths into a proportional and a square variant each
func Variants(widths []int) []Variant {
	out := make([]Variant, 0, len(widths)*2)
	for _, w := range widths {
		out = append(out,
			Variant{Prefix: strconv.Itoa(w), Width: w},
			Variant{Prefix: fmt.Sprintf("%dx%d", w, w), Width: w, Square: true},
		)
	}
	return out
}

// ThumbnailConfig configures a ThumbnailService
type ThumbnailConfig struct {
	Widths      []int
	JPEGQuality int
	Timeout     time.Duration
}

// ThumbnailService resizes stored images into thumbs/ siblings
type ThumbnailService struct {
	storage  ObjectStorage
	variants []Variant
	quality  int
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewThumbnailService creates a thumbnail service over storage
func NewThumbnailService(storage ObjectStorage, cfg ThumbnailConfig, logger *zap.Logger) *ThumbnailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	widths := cfg.Widths
	if len(widths) == 0 {
		widths = DefaultWidths
	}
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &ThumbnailService{
		storage:  storage,
		variants: Variants(widths),
		quality:  quality,
		timeout:  cfg.Timeout,
		logger:   logger,
		tracer:   otel.Tracer("media"),
	}
}

// ThumbnailKey returns where the variant with prefix is stored for key
func ThumbnailKey(key, prefix string) string {
	dir, file := path.Split(key)
	return dir + thumbsDir + "/" + prefix + "_" + file
}

// IsThumbnail reports whether key already lives in a thumbs directory
func IsThumbnail(key string) bool {
	return path.Base(path.Dir(key)) == thumbsDir
}

// Generate writes every variant of the image at key and returns their keys.
// Keys already inside a thumbs directory are skipped and yield no keys.
// Variants wider than the source are not produced.
func (s *ThumbnailService) Generate(ctx context.Context, key string) ([]string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, shared.ErrInvalidInput.WithMessage("object key is required")
	}
	if IsThumbnail(key) {
		s.logger.Debug("Skipping thumbnail object", zap.String("key", key))
		return []string{}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx, span := s.tracer.Start(ctx, "media.Generate", trace.WithAttributes(attribute.String("object.key", key)))
	defer span.End()

	keys, err := s.generate(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("thumbnail.count", len(keys)))
	s.logger.Info("Thumbnails generated", zap.String("key", key), zap.Int("count", len(keys)))
	return keys, nil
}

func (s *ThumbnailService) generate(ctx context.Context, key string) ([]string, error) {
	obj, err := s.storage.Download(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, shared.ErrNotFound.WithMessage("object " + key + " not found")
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	if obj.ContentType != "" && !strings.HasPrefix(obj.ContentType, "image/") {
		return nil, shared.ErrInvalidInput.WithMessage("object " + key + " is not an image")
	}

	src, format, err := imaging.Decode(obj.Data)
	if errors.Is(err, imaging.ErrUnsupportedFormat) {
		return nil, shared.ErrInvalidInput.WithMessage("object " + key + " is not a supported image")
	}
	if err != nil {
		return nil, shared.ErrInvalidInput.WithMessage(err.Error())
	}

	keys := make([]string, 0, len(s.variants))
	for _, v := range s.variants {
		if !fits(src, v) {
			continue
		}
		var out image.Image
		if v.Square {
			out = imaging.Square(src, v.Width)
		} else {
			out = imaging.Resize(src, v.Width)
		}
		data, _, contentType, err := imaging.Encode(out, format, s.quality)
		if err != nil {
			return keys, err
		}
		target := ThumbnailKey(key, v.Prefix)
		if err := s.storage.Upload(ctx, target, data, contentType); err != nil {
			return keys, fmt.Errorf("upload %s: %w", target, err)
		}
		keys = append(keys, target)
	}
	return keys, nil
}

// fits reports whether v can be produced without upscaling src
func fits(src image.Image, v Variant) bool {
	b := src.Bounds()
	if v.Square {
		return b.Dx() >= v.Width && b.Dy() >= v.Width
	}
	return b.Dx() >= v.Width
}
