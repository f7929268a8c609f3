package service

import (
	"testing"
	"time"

	"github.com/bigkaa/gofilegate/internal/domain/model"
)

func TestCache_SetGet(t *testing.T) {
	cache := NewCacheService(4, time.Minute)

	record := &model.FileRecord{FileID: "file-1", Filename: "a.pdf"}
	cache.Set("file-1", record)

	got, ok := cache.Get("file-1")
	if !ok {
		t.Fatal("Запись не найдена в кэше")
	}
	if got.FileID != "file-1" {
		t.Errorf("FileID: %q", got.FileID)
	}
}

func TestCache_Miss(t *testing.T) {
	cache := NewCacheService(4, time.Minute)

	if _, ok := cache.Get("no-such-file"); ok {
		t.Error("Хотели промах кэша")
	}
}

func TestCache_Delete(t *testing.T) {
	cache := NewCacheService(4, time.Minute)

	cache.Set("file-1", &model.FileRecord{FileID: "file-1"})
	cache.Delete("file-1")

	if _, ok := cache.Get("file-1"); ok {
		t.Error("Запись не удалена из кэша")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCacheService(4, 20*time.Millisecond)

	cache.Set("file-1", &model.FileRecord{FileID: "file-1"})
	time.Sleep(60 * time.Millisecond)

	if _, ok := cache.Get("file-1"); ok {
		t.Error("Запись должна истечь по TTL")
	}
}

func TestCache_Eviction(t *testing.T) {
	cache := NewCacheService(2, time.Minute)

	cache.Set("file-1", &model.FileRecord{FileID: "file-1"})
	cache.Set("file-2", &model.FileRecord{FileID: "file-2"})
	cache.Set("file-3", &model.FileRecord{FileID: "file-3"})

	// Самая старая запись вытеснена
	if _, ok := cache.Get("file-1"); ok {
		t.Error("file-1 должен быть вытеснен по LRU")
	}
	if _, ok := cache.Get("file-3"); !ok {
		t.Error("file-3 должен остаться в кэше")
	}
}
