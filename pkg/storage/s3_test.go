package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError.
type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// fakeS3 is an in-memory S3 backend.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		// Drain so the pipe writer does not block forever.
		io.Copy(io.Discard, in.Body)
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*in.Key] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, *in.Key)
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NotFound"}
	}
	size := int64(len(data))
	now := time.Now()
	return &s3.HeadObjectOutput{ContentLength: &size, LastModified: &now}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		size := int64(len(f.objects[k]))
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: &size})
	}
	return out, nil
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3(fake, "bucket", "attachments")

	writeFile(t, st, "thread1/report.pdf", "pdfdata")

	if _, ok := fake.objects["attachments/thread1/report.pdf"]; !ok {
		t.Fatalf("object keys = %v", fake.objects)
	}

	r, err := st.Read(ctx, "thread1/report.pdf")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "pdfdata" {
		t.Errorf("read = %q", data)
	}

	ok, err := st.Exists(ctx, "thread1/report.pdf")
	if err != nil || !ok {
		t.Errorf("exists = %v, %v", ok, err)
	}

	fi, err := st.Stat(ctx, "thread1/report.pdf")
	if err != nil || fi.Size != 7 {
		t.Errorf("stat = %+v, %v", fi, err)
	}

	if err := st.Delete(ctx, "thread1/report.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Read(ctx, "thread1/report.pdf"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read after delete: %v", err)
	}
}

func TestS3WriteError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("denied")
	st := NewS3(fake, "bucket", "")

	w, err := st.Write(context.Background(), "x")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	io.WriteString(w, "data")
	if err := w.Close(); err == nil {
		t.Error("close should surface upload error")
	}
}

func TestS3List(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3(fake, "bucket", "pre")

	for _, name := range []string{"a/1.txt", "a/2.txt", "b/3.txt"} {
		writeFile(t, st, name, "x")
	}

	got, err := st.List(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Path != "a/1.txt" || got[1].Path != "a/2.txt" {
		t.Errorf("list = %+v", got)
	}
}

func TestS3ExistsMissing(t *testing.T) {
	st := NewS3(newFakeS3(), "bucket", "")
	ok, err := st.Exists(context.Background(), "ghost")
	if err != nil || ok {
		t.Errorf("exists missing = %v, %v", ok, err)
	}
	if _, err := st.Stat(context.Background(), "ghost"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stat missing: %v", err)
	}
}
