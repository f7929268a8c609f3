// signer.go — выдача capability: presigned URL строго на одну операцию
// с одним ключом в ограниченном окне времени. Подпись вычисляется
// локально, хранилище при выдаче не затрагивается.
package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/bigkaa/gofilegate/internal/config"
)

// Signer — эмитент capability для объектного хранилища.
type Signer struct {
	client      *minio.Client
	bucket      string
	uploadTTL   time.Duration
	downloadTTL time.Duration
	deleteTTL   time.Duration
}

// NewSigner создаёт эмитент capability поверх клиента адаптера.
func NewSigner(store *Store, cfg *config.Config) *Signer {
	return &Signer{
		client:      store.client,
		bucket:      store.bucket,
		uploadTTL:   cfg.UploadURLTTL,
		downloadTTL: cfg.DownloadURLTTL,
		deleteTTL:   cfg.DeleteURLTTL,
	}
}

// UploadTTL возвращает TTL upload capability.
func (s *Signer) UploadTTL() time.Duration { return s.uploadTTL }

// DownloadTTL возвращает TTL download capability.
func (s *Signer) DownloadTTL() time.Duration { return s.downloadTTL }

// DeleteTTL возвращает TTL delete capability.
func (s *Signer) DeleteTTL() time.Duration { return s.deleteTTL }

// PresignUpload выдаёт PUT capability для ключа.
// Короткий TTL: URL используется сразу после выдачи в том же
// request/response цикле.
func (s *Signer) PresignUpload(ctx context.Context, key string) (*url.URL, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.uploadTTL)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// PresignDownload выдаёт GET capability для ключа.
// filename попадает в response-content-disposition, чтобы браузер
// сохранил файл под отображаемым именем, а не под ключом хранилища.
func (s *Signer) PresignDownload(ctx context.Context, key, filename string) (*url.URL, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	reqParams := make(url.Values)
	if filename != "" {
		reqParams.Set("response-content-disposition",
			fmt.Sprintf("attachment; filename=%q", filename))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.downloadTTL, reqParams)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// PresignDelete выдаёт DELETE capability для ключа.
func (s *Signer) PresignDelete(ctx context.Context, key string) (*url.URL, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	u, err := s.client.Presign(ctx, http.MethodDelete, s.bucket, key, s.deleteTTL, nil)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}
