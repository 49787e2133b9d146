package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/pkg/cloudinary"
)

type imageStorageStub struct {
	uploaded bytes.Buffer
	name     string
	digest   string
}

func (s *imageStorageStub) UploadImage(ctx context.Context, name, digest string, reader io.Reader) (cloudinary.Image, error) {
	s.uploaded.Reset()
	if _, err := s.uploaded.ReadFrom(reader); err != nil {
		return cloudinary.Image{}, err
	}
	s.name = name
	s.digest = digest
	return cloudinary.Image{
		URL:      "https://res.cloudinary.com/demo/" + cloudinary.PublicID(name, digest),
		PublicID: cloudinary.PublicID(name, digest),
		Width:    1,
		Height:   1,
	}, nil
}

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestImageServiceRequiresStorage(t *testing.T) {
	svc := NewImageService(nil, 0, testLogger())

	_, err := svc.Upload(context.Background(), buildFileHeader(t, "diagram.png", pngSignature), Actor{ID: 1})
	require.ErrorIs(t, err, ErrUploadUnavailable)
}

func TestImageServiceRejectsSize(t *testing.T) {
	storage := &imageStorageStub{}
	svc := NewImageService(storage, 4, testLogger())

	_, err := svc.Upload(context.Background(), buildFileHeader(t, "diagram.png", pngSignature), Actor{ID: 1})
	require.ErrorIs(t, err, ErrImageTooLarge)
	require.Zero(t, storage.uploaded.Len())
}

func TestImageServiceRejectsNonImages(t *testing.T) {
	storage := &imageStorageStub{}
	svc := NewImageService(storage, 0, testLogger())

	_, err := svc.Upload(context.Background(), buildFileHeader(t, "notes.png", []byte("plain text pretending")), Actor{ID: 1})
	require.ErrorIs(t, err, ErrImageTypeNotAllowed)
	require.Empty(t, storage.name)
}

func TestImageServiceStoresImage(t *testing.T) {
	storage := &imageStorageStub{}
	svc := NewImageService(storage, 0, testLogger())

	resp, err := svc.Upload(context.Background(), buildFileHeader(t, "Loop Diagram.png", pngSignature), Actor{ID: 1, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, "image/png", resp.MimeType)
	require.Equal(t, int64(len(pngSignature)), resp.SizeBytes)
	require.Len(t, storage.digest, 64)
	require.Equal(t, pngSignature, storage.uploaded.Bytes())
	require.Equal(t, "loop-diagram-"+storage.digest[:16], resp.PublicID)
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
