package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/entitysync/internal/models"
)

// Зарезервированные ключи конверта изменений
const (
	KeyDeletedIDs = "DeletedIDs"
	KeyServerTime = "ServerTime"
)

// Changes представляет ответ сервера с изменениями начиная с watermark.
// На проводе это один JSON объект: ключи типов сущностей со списками
// измененных сущностей плюс зарезервированные ключи DeletedIDs и ServerTime.
type Changes struct {
	Entities   map[string][]models.Entity // Entities измененные сущности по типам
	ServerTime string                     // ServerTime новый watermark
	DeletedIDs []string                   // DeletedIDs ключи вида "<Type>_<id>"
}

// UnmarshalJSON decodes the flat changes envelope.
func (c *Changes) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode changes: %w", err)
	}

	c.Entities = make(map[string][]models.Entity)
	c.DeletedIDs = nil
	c.ServerTime = ""

	for key, value := range raw {
		switch key {
		case KeyDeletedIDs:
			if err := json.Unmarshal(value, &c.DeletedIDs); err != nil {
				return fmt.Errorf("failed to decode %s: %w", KeyDeletedIDs, err)
			}
		case KeyServerTime:
			token, err := decodeToken(value)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", KeyServerTime, err)
			}
			c.ServerTime = token
		default:
			var entities []models.Entity
			if err := json.Unmarshal(value, &entities); err != nil {
				return fmt.Errorf("failed to decode changes for type %s: %w", key, err)
			}
			c.Entities[key] = entities
		}
	}

	return nil
}

// MarshalJSON encodes the changes back into the flat envelope.
func (c Changes) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Entities)+2)
	for typ, entities := range c.Entities {
		out[typ] = entities
	}
	deleted := c.DeletedIDs
	if deleted == nil {
		deleted = []string{}
	}
	out[KeyDeletedIDs] = deleted
	out[KeyServerTime] = c.ServerTime
	return json.Marshal(out)
}

// decodeToken принимает watermark как строку или как число
func decodeToken(value json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// DeletedKey builds the composite "<Type>_<id>" key used in DeletedIDs.
func DeletedKey(typ string, id int64) string {
	return typ + "_" + strconv.FormatInt(id, 10)
}

// ParseDeletedKey splits a "<Type>_<id>" key at the first underscore.
func ParseDeletedKey(key string) (string, int64, error) {
	typ, rawID, found := strings.Cut(key, "_")
	if !found || typ == "" {
		return "", 0, fmt.Errorf("malformed deleted key %q", key)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed id in deleted key %q: %w", key, err)
	}
	return typ, id, nil
}

// UpdateServerRequest отправляет накопленные offline изменения на сервер
type UpdateServerRequest struct {
	Unsaved    map[string][]models.Entity `json:"UnsavedEntities"`
	DeletedIDs map[string][]int64         `json:"DeletedIDs"`
	PushID     string                     `json:"PushID"`
}

// DeleteEntitiesRequest запрос на пакетное удаление сущностей одного типа
type DeleteEntitiesRequest struct {
	IDs []int64 `json:"IDs"`
}

// ErrorResponse представляет ошибку, возвращаемую сервером
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
