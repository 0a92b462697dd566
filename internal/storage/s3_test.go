package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploaderStub struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (u *uploaderStub) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	u.input = input
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = data
	if u.err != nil {
		return nil, u.err
	}
	return &manager.UploadOutput{}, nil
}

func newTestStore(up uploader, baseURL string) *ThumbnailStore {
	s := newThumbnailStore(up, "thumbs", baseURL)
	s.newID = func() string { return "fixed-id" }
	return s
}

func TestThumbnailStoreSave(t *testing.T) {
	up := &uploaderStub{}
	store := newTestStore(up, "https://cdn.example.com/")

	location, err := store.Save(context.Background(), "Poster.PNG", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if location != "https://cdn.example.com/thumbnails/fixed-id.png" {
		t.Fatalf("unexpected location: %q", location)
	}
	if aws.ToString(up.input.Bucket) != "thumbs" || aws.ToString(up.input.Key) != "thumbnails/fixed-id.png" {
		t.Fatalf("unexpected object: %s/%s", aws.ToString(up.input.Bucket), aws.ToString(up.input.Key))
	}
	if aws.ToString(up.input.ContentType) != "image/png" {
		t.Fatalf("unexpected content type: %q", aws.ToString(up.input.ContentType))
	}
	if string(up.body) != "png-bytes" {
		t.Fatalf("unexpected body: %q", up.body)
	}
}

func TestThumbnailStoreWithoutPublicURL(t *testing.T) {
	store := newTestStore(&uploaderStub{}, "")

	location, err := store.Save(context.Background(), "a.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if location != "thumbnails/fixed-id.jpg" {
		t.Fatalf("expected bare key got %q", location)
	}
}

func TestThumbnailStoreRejectsNonImages(t *testing.T) {
	up := &uploaderStub{}
	store := newTestStore(up, "")

	for _, name := range []string{"notes.txt", "movie.mp4", "noext"} {
		if _, err := store.Save(context.Background(), name, strings.NewReader("x")); !errors.Is(err, ErrUnsupportedImage) {
			t.Fatalf("%s: expected ErrUnsupportedImage got %v", name, err)
		}
	}
	if up.input != nil {
		t.Fatal("rejected files must not be uploaded")
	}
}

func TestThumbnailStoreUploadError(t *testing.T) {
	store := newTestStore(&uploaderStub{err: errors.New("denied")}, "")

	if _, err := store.Save(context.Background(), "a.webp", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload error")
	}
}
