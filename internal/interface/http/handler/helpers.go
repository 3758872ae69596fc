package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/http/middleware"
	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
)

func getUserID(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, errors.New("userID не найден в контексте")
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("некорректный формат userID")
	}
	return userID, nil
}

func getRole(c *gin.Context) valueobject.Role {
	value, _ := c.Get(middleware.ContextRoleKey)
	role, _ := value.(valueobject.Role)
	return role
}

// caller достаёт пользователя и отвечает 401, если его нет.
func caller(c *gin.Context) (uuid.UUID, valueobject.Role, bool) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return uuid.Nil, "", false
	}
	return userID, getRole(c), true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "некорректный параметр "+name)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON разбирает тело запроса и отвечает 400 при ошибке.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return false
	}
	return true
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func pageFromQuery(c *gin.Context) repository.Page {
	return repository.Page{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}.Normalize()
}
