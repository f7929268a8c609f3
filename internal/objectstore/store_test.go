package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// newTestStore создаёт Store поверх httptest-сервера, имитирующего
// S3-совместимое хранилище.
func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	endpoint, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:  credentials.NewStaticV4("test-access", "test-secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("Не удалось создать minio клиент: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithClient(client, "filegate", logger)
}

// TestExists_Found проверяет подтверждённое существование объекта.
func TestExists_Found(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("ожидался HEAD, получен %s", r.Method)
		}
		w.Header().Set("Content-Length", "1024")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	}))

	exists, err := store.Exists(context.Background(), "some-key.pdf")
	if err != nil {
		t.Fatalf("Exists() ошибка: %v", err)
	}
	if !exists {
		t.Error("Exists() = false, хотели true")
	}
}

// TestExists_NotFound проверяет подтверждённое отсутствие: (false, nil).
func TestExists_NotFound(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	exists, err := store.Exists(context.Background(), "missing-key.pdf")
	if err != nil {
		t.Fatalf("подтверждённое отсутствие не должно быть ошибкой: %v", err)
	}
	if exists {
		t.Error("Exists() = true, хотели false")
	}
}

// TestExists_AccessDenied проверяет, что отказ в доступе — это ошибка,
// а не "объект отсутствует". Координатор фиксации обязан их различать.
func TestExists_AccessDenied(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := store.Exists(context.Background(), "forbidden-key.pdf")
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("ожидали ErrAccessDenied, получили: %v", err)
	}
}

// TestExists_EmptyKey проверяет отказ для пустого ключа.
func TestExists_EmptyKey(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос не должен отправляться для пустого ключа")
	}))

	_, err := store.Exists(context.Background(), "")
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("ожидали ErrEmptyKey, получили: %v", err)
	}
}

// TestDelete_Success проверяет удаление объекта.
func TestDelete_Success(t *testing.T) {
	var gotMethod, gotPath string
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := store.Delete(context.Background(), "stale-key.pdf"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("метод = %s, хотели DELETE", gotMethod)
	}
	if gotPath != "/filegate/stale-key.pdf" {
		t.Errorf("путь = %q, хотели /filegate/stale-key.pdf", gotPath)
	}
}

// TestPut_Success проверяет серверную запись объекта.
// Тело не сверяется побайтно: клиент использует streaming signature,
// оборачивая данные в chunk-фрейминг.
func TestPut_Success(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"put-etag"`)
		w.WriteHeader(http.StatusOK)
	}))

	err := store.Put(context.Background(), "direct.txt",
		[]byte("содержимое тестового объекта"), "text/plain")
	if err != nil {
		t.Fatalf("Put() ошибка: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("метод = %s, хотели PUT", gotMethod)
	}
	if gotPath != "/filegate/direct.txt" {
		t.Errorf("путь = %q, хотели /filegate/direct.txt", gotPath)
	}
	if gotContentType != "text/plain" {
		t.Errorf("Content-Type = %q, хотели text/plain", gotContentType)
	}
}

// TestGet_Success проверяет серверное чтение объекта.
func TestGet_Success(t *testing.T) {
	payload := []byte("содержимое тестового объекта")
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"get-etag"`)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))

	got, err := store.Get(context.Background(), "direct.txt")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get() вернул %q, хотели %q", got, payload)
	}
}

// TestList_CollectsEntries проверяет перечисление объектов.
func TestList_CollectsEntries(t *testing.T) {
	const listResponse = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>filegate</Name>
  <Prefix></Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>1700000000000-aaaa1111-one.pdf</Key>
    <LastModified>2025-01-01T00:00:00.000Z</LastModified>
    <ETag>&quot;e1&quot;</ETag>
    <Size>100</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>1700000000001-bbbb2222-two.pdf</Key>
    <LastModified>2025-01-02T00:00:00.000Z</LastModified>
    <ETag>&quot;e2&quot;</ETag>
    <Size>200</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(listResponse))
	}))

	var keys []string
	var totalSize int64
	err := store.List(context.Background(), "", func(e ObjectEntry) error {
		keys = append(keys, e.Key)
		totalSize += e.Size
		return nil
	})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}

	if len(keys) != 2 {
		t.Fatalf("List() вернул %d объектов, хотели 2", len(keys))
	}
	if keys[0] != "1700000000000-aaaa1111-one.pdf" {
		t.Errorf("первый ключ = %q", keys[0])
	}
	if totalSize != 300 {
		t.Errorf("суммарный размер = %d, хотели 300", totalSize)
	}
}

// TestList_CallbackError проверяет прерывание перечисления ошибкой fn.
func TestList_CallbackError(t *testing.T) {
	const listResponse = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>filegate</Name>
  <KeyCount>1</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>some-key.pdf</Key>
    <LastModified>2025-01-01T00:00:00.000Z</LastModified>
    <ETag>&quot;e1&quot;</ETag>
    <Size>100</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(listResponse))
	}))

	wantErr := errors.New("прерывание перечисления")
	err := store.List(context.Background(), "", func(e ObjectEntry) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("ожидали ошибку callback, получили: %v", err)
	}
}

// TestClassify проверяет таксономию ошибок по кодам S3.
func TestClassify(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"NoSuchKey", ErrNotFound},
		{"NoSuchBucket", ErrBucketNotFound},
		{"AccessDenied", ErrAccessDenied},
		{"InvalidAccessKeyId", ErrInvalidCredentials},
		{"SignatureDoesNotMatch", ErrSignatureMismatch},
		{"SlowDown", ErrStore},
		{"InternalError", ErrStore},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := classify(minio.ErrorResponse{Code: tt.code, Message: "тест"})
			if !errors.Is(err, tt.want) {
				t.Errorf("classify(%s) = %v, хотели %v", tt.code, err, tt.want)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) должен возвращать nil")
	}
}
