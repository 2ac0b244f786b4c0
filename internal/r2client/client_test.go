package r2client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 serves the small part of the S3 API the read paths use.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string // key -> body
	deleted []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/test-bucket")
	key := strings.TrimPrefix(path, "/")

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
		b.WriteString(`<Name>test-bucket</Name><IsTruncated>false</IsTruncated>`)
		day := 1
		for _, k := range []string{"backups/20260101T000000Z.db.zst", "backups/20260103T000000Z.db.zst", "backups/20260102T000000Z.db.zst", "other/x"} {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>2026-01-%02dT00:00:00.000Z</LastModified><ETag>"e"</ETag><Size>%d</Size></Contents>`,
				k, dayOf(k, day), len(k))
		}
		b.WriteString(`</ListBucketResult>`)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, b.String())
	case r.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"etag-1"`)
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = io.WriteString(w, body)
	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, key)
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// dayOf extracts the day from a backup key so listing order is deterministic.
func dayOf(key string, fallback int) int {
	var y, m, d int
	if _, err := fmt.Sscanf(strings.TrimPrefix(key, "backups/"), "%4d%2d%2d", &y, &m, &d); err == nil {
		return d
	}
	return fallback
}

func newTestClient(t *testing.T, objects map[string]string) (*Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: objects}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		Endpoint:    srv.URL,
		AccessKeyID: "access",
		SecretKey:   "secret",
		BucketName:  "test-bucket",
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := Config{Endpoint: "https://account.r2.cloudflarestorage.com", AccessKeyID: "a", SecretKey: "s", BucketName: "b"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint"},
		{"missing access key", func(c *Config) { c.AccessKeyID = "" }, "access key id"},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }, "secret key"},
		{"missing bucket", func(c *Config) { c.BucketName = "" }, "bucket name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}

func TestClient_List(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, nil)

	objects, err := c.List(context.Background(), "backups/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("got %d objects, want 3: %+v", len(objects), objects)
	}
	want := []string{"backups/20260103T000000Z.db.zst", "backups/20260102T000000Z.db.zst", "backups/20260101T000000Z.db.zst"}
	for i, obj := range objects {
		if obj.Key != want[i] {
			t.Errorf("objects[%d] = %q, want %q", i, obj.Key, want[i])
		}
	}
	if !objects[0].LastModified.Equal(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("LastModified = %v", objects[0].LastModified)
	}
}

func TestClient_Download(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, map[string]string{"backups/a.db.zst": "payload"})

	rc, etag, err := c.Download(context.Background(), "backups/a.db.zst")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "payload" || etag != "etag-1" {
		t.Errorf("Download = %q, %q", data, etag)
	}

	if _, _, err := c.Download(context.Background(), "backups/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing object error = %v, want ErrNotFound", err)
	}
}

func TestLock_Release(t *testing.T) {
	t.Parallel()

	t.Run("missing lock", func(t *testing.T) {
		t.Parallel()
		c, fake := newTestClient(t, map[string]string{})
		if err := NewLock(c, "backups/.lock", time.Minute).Release(context.Background()); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if deleted := fake.deletedKeys(); len(deleted) != 0 {
			t.Errorf("unexpected delete: %v", deleted)
		}
	})

	t.Run("held by another owner", func(t *testing.T) {
		t.Parallel()
		c, fake := newTestClient(t, map[string]string{
			"backups/.lock": `{"owner":"someone-else","expires_at":"2099-01-01T00:00:00Z"}`,
		})
		if err := NewLock(c, "backups/.lock", time.Minute).Release(context.Background()); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if deleted := fake.deletedKeys(); len(deleted) != 0 {
			t.Errorf("must not delete a lock owned by someone else: %v", deleted)
		}
	})

	t.Run("own lock", func(t *testing.T) {
		t.Parallel()
		c, fake := newTestClient(t, map[string]string{})
		lock := NewLock(c, "backups/.lock", time.Minute)
		fake.mu.Lock()
		fake.objects["backups/.lock"] = fmt.Sprintf(`{"owner":%q,"expires_at":"2099-01-01T00:00:00Z"}`, lock.Owner())
		fake.mu.Unlock()

		if err := lock.Release(context.Background()); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if deleted := fake.deletedKeys(); len(deleted) != 1 || deleted[0] != "backups/.lock" {
			t.Errorf("deleted = %v, want the lock key", deleted)
		}
	})
}
