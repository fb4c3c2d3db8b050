package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mc3e/internal/document"
	"mc3e/internal/schema"
	"mc3e/internal/settings"
)

// Коды ошибок API поверх кодов валидации схем
const (
	ErrVersionConflict = "version_conflict"
	ErrReadOnly        = "readonly_field"
	ErrNotFound        = "not_found"
)

// служебные поля ответа; клиент не может их записать
var systemFields = map[string]bool{
	"id": true, "kind": true, "type": true, "created_at": true, "updated_at": true,
	"invalid": true, "errors": true,
}

func ferr(code, field, msg string) schema.FieldError {
	return schema.FieldError{Code: code, Field: field, Message: msg}
}

// checkReadonlyAndSystem убирает version из payload и запрещает служебные поля.
func checkReadonlyAndSystem(payload map[string]any) []schema.FieldError {
	delete(payload, "version")
	var errs []schema.FieldError
	for k := range payload {
		if systemFields[k] {
			errs = append(errs, ferr(ErrReadOnly, k, "field is read-only"))
		}
	}
	return errs
}

// statusForError переводит ошибку домена в HTTP-статус.
func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrVersionConflict), errors.Is(err, document.ErrExists):
		return http.StatusConflict
	case errors.Is(err, document.ErrNotFound), errors.Is(err, schema.ErrUnknownType):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, settings.ErrUnknownRole):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError отвечает {"errors":[...]} для нарушений схемы и конфликтов версий,
// {"error":"..."} для остального.
func writeError(c *gin.Context, err error) {
	status := statusForError(err)
	switch {
	case errors.Is(err, schema.ErrInvalid):
		c.JSON(status, gin.H{"errors": schema.FieldErrors(err)})
	case errors.Is(err, document.ErrVersionConflict):
		c.JSON(status, gin.H{"errors": []schema.FieldError{ferr(ErrVersionConflict, "version", err.Error())}})
	case status == http.StatusInternalServerError:
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

// currentUser: пользователь запроса по заголовкам X-User-Role и X-User-Name.
func currentUser(c *gin.Context) (settings.User, error) {
	role, err := settings.ParseRole(c.GetHeader("X-User-Role"))
	if err != nil {
		return settings.User{}, err
	}
	return settings.User{Name: strings.TrimSpace(c.GetHeader("X-User-Name")), Role: role}, nil
}

func setETag(c *gin.Context, rec *document.Record) {
	c.Header("ETag", fmt.Sprintf(`"%d"`, rec.Version))
}

// readExpectedVersion читает ожидаемую версию из If-Match либо из payload["version"] (число).
func readExpectedVersion(c *gin.Context, payload map[string]any) (int64, bool) {
	// If-Match: допускаем просто число, "3" и W/"3"
	ifMatch := strings.TrimSpace(c.GetHeader("If-Match"))
	if ifMatch != "" {
		ifMatch = strings.TrimPrefix(ifMatch, "W/")
		ifMatch = strings.Trim(ifMatch, `"'`)
		if v, err := strconv.ParseInt(ifMatch, 10, 64); err == nil {
			return v, true
		}
	}
	if payload != nil {
		if raw, ok := payload["version"]; ok {
			switch t := raw.(type) {
			case float64:
				return int64(t), true
			case string:
				if v, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
					return v, true
				}
			}
		}
	}
	return 0, false
}
