package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/pkg/cloudinary"
)

const defaultImageLimit = 5 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageStorage abstracts where question images are kept.
type ImageStorage interface {
	UploadImage(ctx context.Context, name, digest string, reader io.Reader) (cloudinary.Image, error)
}

// ImageService validates and stores images referenced by questions.
type ImageService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, uploader Actor) (dto.ImageUploadResponse, error)
}

type imageService struct {
	storage ImageStorage
	maxSize int64
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewImageService constructs the image service. A nil storage makes every
// upload fail with ErrUploadUnavailable.
func NewImageService(storage ImageStorage, maxSizeBytes int64, logger zerolog.Logger) ImageService {
	if maxSizeBytes <= 0 {
		maxSizeBytes = defaultImageLimit
	}
	return &imageService{
		storage: storage,
		maxSize: maxSizeBytes,
		logger:  logger.With().Str("component", "image_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/image"),
	}
}

func (s *imageService) Upload(ctx context.Context, file *multipart.FileHeader, uploader Actor) (dto.ImageUploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "image.upload")
	defer span.End()

	fail := func(err error, status string) (dto.ImageUploadResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return dto.ImageUploadResponse{}, err
	}

	if s.storage == nil {
		return fail(ErrUploadUnavailable, "storage unavailable")
	}
	if file == nil {
		return fail(errors.New("file is required"), "validation failed")
	}
	span.SetAttributes(
		attribute.String("image.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("image.request_size", file.Size),
	)
	if file.Size > s.maxSize {
		return fail(ErrImageTooLarge, "payload too large")
	}

	handle, err := file.Open()
	if err != nil {
		return fail(err, "open failed")
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return fail(err, "read failed")
	}
	if int64(buf.Len()) > s.maxSize {
		return fail(ErrImageTooLarge, "payload too large")
	}

	detected := mimetype.Detect(buf.Bytes()).String()
	span.SetAttributes(attribute.String("image.detected_mime", detected))
	if !allowedImageTypes[detected] {
		return fail(ErrImageTypeNotAllowed, "type not allowed")
	}

	checksum := sha256.Sum256(buf.Bytes())
	digest := hex.EncodeToString(checksum[:])

	image, err := s.storage.UploadImage(ctx, file.Filename, digest, bytes.NewReader(buf.Bytes()))
	if err != nil {
		s.logger.Error().Err(err).Str("file_name", file.Filename).Msg("image upload failed")
		return fail(err, "storage failed")
	}

	s.logger.Info().Uint("uploader_id", uploader.ID).Str("public_id", image.PublicID).Msg("question image stored")
	span.SetStatus(codes.Ok, "stored")

	return dto.ImageUploadResponse{
		URL:       image.URL,
		PublicID:  image.PublicID,
		MimeType:  detected,
		SizeBytes: int64(buf.Len()),
		Width:     image.Width,
		Height:    image.Height,
	}, nil
}
