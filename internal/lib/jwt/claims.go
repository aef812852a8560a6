// Package jwt реализует генерацию и парсинг JWT токенов для API-клиентов сервиса.
//
// Токен несёт имя клиента и его роль (admin / service), по которым
// middleware ограничивает доступ к операциям каталога.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken создаёт токен для API-клиента с заданной ролью.
	GenerateToken(clientName, role string) (string, error)
	// ParseToken возвращает *CustomClaims с данными клиента.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
