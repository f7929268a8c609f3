// errors.go — таксономия ошибок объектного хранилища.
// Каждая категория различается, потому что различается реакция вызывающего:
// NotFound — бизнес-ответ, InvalidCredentials/BucketNotFound — алерт оператору,
// остальное — серверная ошибка без ретрая на стороне пользователя.
package objectstore

import (
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrNotFound — объект не найден (подтверждённое отсутствие).
	ErrNotFound = errors.New("объект не найден в хранилище")
	// ErrAccessDenied — доступ к хранилищу запрещён.
	ErrAccessDenied = errors.New("доступ к объектному хранилищу запрещён")
	// ErrInvalidCredentials — некорректные учётные данные хранилища.
	ErrInvalidCredentials = errors.New("некорректные учётные данные объектного хранилища")
	// ErrSignatureMismatch — подпись запроса отвергнута хранилищем.
	ErrSignatureMismatch = errors.New("подпись запроса отвергнута хранилищем")
	// ErrBucketNotFound — бакет не существует.
	ErrBucketNotFound = errors.New("бакет не существует")
	// ErrStore — прочие ошибки хранилища (транспорт, 5xx и т.п.).
	ErrStore = errors.New("ошибка объектного хранилища")
	// ErrEmptyKey — пустой ключ объекта.
	ErrEmptyKey = errors.New("пустой ключ объекта")
)

// classify преобразует ошибку minio в ошибку таксономии.
// Коды S3 различимы через minio.ToErrorResponse.
func classify(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Key)
	case "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrBucketNotFound, resp.BucketName)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", ErrAccessDenied, resp.Message)
	case "InvalidAccessKeyId":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, resp.Message)
	case "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %s", ErrSignatureMismatch, resp.Message)
	default:
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
}
