package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// TypeNamePattern определяет допустимый формат имени типа сущности
// Латинские буквы и цифры, первый символ - буква. Длина: 1-64 символа.
// Символы "|" и "_" запрещены: они используются в ключах теневых хранилищ
// ("UnsavedEntities|T") и в ключах удалений ("T_42").
var TypeNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]{0,63}$`)

// MaxTypeNameLen максимальная длина имени типа
const MaxTypeNameLen = 64

// ValidateTypeName проверяет имя типа сущности
func ValidateTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("type name cannot be empty")
	}

	if len(name) > MaxTypeNameLen {
		return fmt.Errorf("type name %q must not exceed %d characters", name, MaxTypeNameLen)
	}

	if strings.ContainsAny(name, "|_") {
		return fmt.Errorf("type name %q must not contain '|' or '_'", name)
	}

	if !TypeNamePattern.MatchString(name) {
		return fmt.Errorf("type name %q can only contain letters and digits and must start with a letter", name)
	}

	return nil
}

// ValidateTypes проверяет список типов: каждое имя корректно, дубликатов нет
func ValidateTypes(types []string) error {
	if len(types) == 0 {
		return fmt.Errorf("at least one entity type is required")
	}

	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if err := ValidateTypeName(t); err != nil {
			return err
		}
		if _, ok := seen[t]; ok {
			return fmt.Errorf("duplicate entity type %q", t)
		}
		seen[t] = struct{}{}
	}

	return nil
}
