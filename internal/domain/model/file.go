// Пакет model — доменные модели Filegate.
package model

import "time"

// MaxLabelLength — максимальная длина одной классификационной метки.
const MaxLabelLength = 100

// Labels — классификационные метки файла.
// Каждая метка независимо опциональна: nil — метка не задана.
type Labels struct {
	// Product — продукт, к которому относится файл
	Product *string
	// Version — версия продукта
	Version *string
	// Language — язык содержимого
	Language *string
	// Confluence — целевой раздел Confluence
	Confluence *string
}

// FileRecord — запись зафиксированного файла.
// Хранится в таблице files. Создаётся только координатором загрузки
// после подтверждения существования объекта в хранилище.
type FileRecord struct {
	// FileID — UUID файла (присваивается при фиксации)
	FileID string
	// Filename — отображаемое имя файла
	Filename string
	// Size — размер файла в байтах
	Size int64
	// ContentType — MIME-тип файла
	ContentType string
	// StorageKey — ключ объекта в хранилище. У зафиксированного файла
	// не бывает пустым; пустой ключ — аномалия целостности данных.
	StorageKey string
	// UploadedBy — идентификатор загрузившего (sub из JWT)
	UploadedBy string
	// UploadedAt — время загрузки
	UploadedAt time.Time
	// Labels — классификационные метки
	Labels Labels
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Assignment — связь "пользователь может читать файл".
// Хранится в таблице file_user_assignments, уникальна по паре (file, user).
type Assignment struct {
	// FileID — UUID файла
	FileID string
	// UserID — идентификатор пользователя
	UserID string
	// CreatedAt — время создания связи
	CreatedAt time.Time
}

// User — принципал портала. Идентичность приходит из Keycloak (sub),
// локально хранится флаг is_admin и кэшированные атрибуты профиля.
type User struct {
	// UserID — Keycloak user ID (sub)
	UserID string
	// Username — имя пользователя
	Username string
	// Email — адрес электронной почты
	Email string
	// IsAdmin — администратор портала
	IsAdmin bool
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
