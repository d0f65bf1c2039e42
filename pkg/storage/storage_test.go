package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLocalWriteAndRead(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	data := []byte{0x7f, 0xff, 0x00, 0x80} // μ-law bytes
	w, err := s.Write(ctx, "calls/SD1.in.ulaw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := s.Read(ctx, "calls/SD1.in.ulaw")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v, want %v", got, data)
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Read(context.Background(), "calls/none.ulaw")
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	if err := s.Delete(ctx, "never-written"); err != nil {
		t.Fatal(err)
	}
}

func TestLocalExists(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	w, _ := s.Write(ctx, "present")
	w.Close()
	ok, err = s.Exists(ctx, "present")
	if err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v", ok, err)
	}
}

// fakeS3 records uploaded objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	fake := &fakeS3{}
	s := NewS3(fake, "recordings", "calls")
	ctx := context.Background()

	w, err := s.Write(ctx, "SD1.out.ulaw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("audio")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Exists(ctx, "SD1.out.ulaw")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	r, err := s.Read(ctx, "SD1.out.ulaw")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(r)
	r.Close()
	if string(got) != "audio" {
		t.Fatalf("Read = %q", got)
	}

	if _, ok := fake.objects["calls/SD1.out.ulaw"]; !ok {
		t.Error("object key missing configured prefix")
	}

	if err := s.Delete(ctx, "SD1.out.ulaw"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(ctx, "SD1.out.ulaw"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read after delete = %v, want ErrNotExist", err)
	}
}
