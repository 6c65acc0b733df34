package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader - хранилище картинок платформы: аватары игроков
// (avatars/{userID}/...) и иконки с обложками команд
// (teams/{teamID}/{kind}/...). Ключ формирует вызывающий сервис,
// публичный URL собирается из ключа детерминированно.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
