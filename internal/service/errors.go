// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrAccessDenied — доступ к файлу не разрешён.
	ErrAccessDenied = errors.New("доступ запрещён")
	// ErrUploadNotVerified — объект не подтверждён в хранилище,
	// фиксация отклонена. Сюда же попадает неопределённость: метаданные
	// никогда не создаются, пока наличие объекта не подтверждено.
	ErrUploadNotVerified = errors.New("загрузка не подтверждена — объект отсутствует в хранилище")
	// ErrMissingStorageKey — у записи файла пустой ключ хранилища.
	// Отличается от ErrNotFound: это аномалия целостности данных,
	// требующая внимания оператора, а не простое отсутствие.
	ErrMissingStorageKey = errors.New("у записи файла отсутствует ключ хранилища")
	// ErrStoreUnavailable — объектное хранилище недоступно.
	ErrStoreUnavailable = errors.New("объектное хранилище недоступно")
)
