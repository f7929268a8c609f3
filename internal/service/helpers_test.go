// helpers_test.go — in-memory фейки зависимостей сервисного слоя.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/gofilegate/internal/domain/model"
	"github.com/bigkaa/gofilegate/internal/objectstore"
	"github.com/bigkaa/gofilegate/internal/repository"
)

// testLogger создаёт логгер для тестов (только ошибки).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeFileRepo — in-memory реализация FileRepository.
type fakeFileRepo struct {
	mu        sync.Mutex
	files     map[string]*model.FileRecord
	getCalls  int
	createErr error
	getErr    error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*model.FileRecord)}
}

func (r *fakeFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.files {
		if existing.StorageKey == f.StorageKey {
			return repository.ErrConflict
		}
	}
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt
	r.files[f.FileID] = f
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, fileID string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	f, ok := r.files[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f, nil
}

func (r *fakeFileRepo) UpdateLabels(_ context.Context, fileID string, labels model.Labels) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return repository.ErrNotFound
	}
	f.Labels = labels
	return nil
}

func (r *fakeFileRepo) Delete(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.files, fileID)
	return nil
}

func (r *fakeFileRepo) ListVisibleTo(_ context.Context, userID string, isAdmin bool) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.FileRecord
	for _, f := range r.files {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

func (r *fakeFileRepo) ListStorageKeys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, f := range r.files {
		keys = append(keys, f.StorageKey)
	}
	sort.Strings(keys)
	return keys, nil
}

// fakeAssignmentRepo — in-memory реализация AssignmentRepository.
type fakeAssignmentRepo struct {
	mu sync.Mutex
	// byFile[fileID][userID] = true
	byFile     map[string]map[string]bool
	admins     []string
	replaceErr error
	hasErr     error
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{byFile: make(map[string]map[string]bool)}
}

func (r *fakeAssignmentRepo) assign(fileID, userID string) {
	if r.byFile[fileID] == nil {
		r.byFile[fileID] = make(map[string]bool)
	}
	r.byFile[fileID][userID] = true
}

func (r *fakeAssignmentRepo) Assign(_ context.Context, fileID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assign(fileID, userID)
	return nil
}

func (r *fakeAssignmentRepo) AssignAllAdmins(_ context.Context, fileID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, admin := range r.admins {
		if !r.byFile[fileID][admin] {
			r.assign(fileID, admin)
			count++
		}
	}
	return count, nil
}

func (r *fakeAssignmentRepo) ReplaceForFile(_ context.Context, fileID string, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.byFile[fileID] = make(map[string]bool)
	for _, userID := range userIDs {
		r.assign(fileID, userID)
	}
	return nil
}

func (r *fakeAssignmentRepo) ReplaceForUser(_ context.Context, userID string, fileIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for fileID := range r.byFile {
		delete(r.byFile[fileID], userID)
	}
	for _, fileID := range fileIDs {
		r.assign(fileID, userID)
	}
	return nil
}

func (r *fakeAssignmentRepo) HasAccess(_ context.Context, userID, fileID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasErr != nil {
		return false, r.hasErr
	}
	return r.byFile[fileID][userID], nil
}

// users возвращает отсортированный набор пользователей файла.
func (r *fakeAssignmentRepo) users(fileID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for userID := range r.byFile[fileID] {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// fakeUserRepo — in-memory реализация UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) ListAdmins(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, u := range r.users {
		if u.IsAdmin {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// fakeStore — in-memory реализация ObjectStore.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]int64 // key -> size
	existsErr error
	deleteErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]int64)}
}

func (s *fakeStore) put(key string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = size
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) List(_ context.Context, prefix string, fn func(objectstore.ObjectEntry) error) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	if s.listErr != nil {
		return s.listErr
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := fn(objectstore.ObjectEntry{Key: key, Size: s.objects[key]}); err != nil {
			return err
		}
	}
	return nil
}

// fakeSigner — детерминированная реализация CapabilityIssuer.
type fakeSigner struct {
	presignErr error
}

func (s *fakeSigner) presign(op, key string) (*url.URL, error) {
	if s.presignErr != nil {
		return nil, s.presignErr
	}
	return url.Parse(fmt.Sprintf("https://store.local/bucket/%s?op=%s", key, op))
}

func (s *fakeSigner) PresignUpload(_ context.Context, key string) (*url.URL, error) {
	return s.presign("put", key)
}

func (s *fakeSigner) PresignDownload(_ context.Context, key, _ string) (*url.URL, error) {
	return s.presign("get", key)
}

func (s *fakeSigner) PresignDelete(_ context.Context, key string) (*url.URL, error) {
	return s.presign("delete", key)
}

func (s *fakeSigner) UploadTTL() time.Duration   { return 300 * time.Second }
func (s *fakeSigner) DownloadTTL() time.Duration { return time.Hour }
func (s *fakeSigner) DeleteTTL() time.Duration   { return 300 * time.Second }

// seedFile добавляет запись файла в репозиторий и объект в хранилище.
func seedFile(t *testing.T, files *fakeFileRepo, store *fakeStore, fileID, key string) *model.FileRecord {
	t.Helper()
	record := &model.FileRecord{
		FileID:      fileID,
		Filename:    "doc.pdf",
		Size:        1024,
		ContentType: "application/pdf",
		StorageKey:  key,
		UploadedBy:  "admin-1",
		UploadedAt:  time.Now().UTC(),
	}
	files.files[fileID] = record
	if key != "" {
		store.put(key, record.Size)
	}
	return record
}
