// Package document описывает клиент удаленного хранилища документов (ONO).
// Хранилище держит один непрозрачный blob на ключ и умеет только
// читать и перезаписывать его целиком.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound возвращается, когда документ по ключу еще не создан
var ErrNotFound = errors.New("document not found")

// ErrInvalidKey возвращается для пустого или некорректного ключа
var ErrInvalidKey = errors.New("invalid document key")

// Key ключ документа: кодовое имя приложения и имя набора данных
type Key struct {
	AppCode  string
	DataName string
}

// Validate проверяет, что обе части ключа заданы и не содержат '/'
func (k Key) Validate() error {
	if strings.TrimSpace(k.AppCode) == "" || strings.TrimSpace(k.DataName) == "" {
		return fmt.Errorf("%w: app code and data name are required", ErrInvalidKey)
	}
	if strings.Contains(k.AppCode, "/") || strings.Contains(k.DataName, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

func (k Key) String() string {
	return k.AppCode + "/" + k.DataName
}

// Client интерфейс транспорта к хранилищу документов
type Client interface {
	// Fetch возвращает документ целиком; ErrNotFound если документа нет
	Fetch(ctx context.Context, key Key) ([]byte, error)

	// Store перезаписывает документ целиком (создает при отсутствии)
	Store(ctx context.Context, key Key, data []byte) error
}

// TransportError ошибка вызова хранилища (сеть, 5xx, сбой бэкенда)
type TransportError struct {
	Op  string
	Key Key
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("document %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Wrap оборачивает ошибку бэкенда в TransportError.
// ErrNotFound и ошибки контекста тоже оборачиваются, но остаются доступны через errors.Is.
func Wrap(op string, key Key, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Key: key, Err: err}
}
