package validation

import (
	"fmt"
	"strings"

	"github.com/iudanet/entitysync/internal/models"
)

// RequiredFields returns a validation hook that reports missing or blank
// fields per entity type. Types without rules always pass.
func RequiredFields(rules map[string][]string) func(typ string, e models.Entity) []string {
	return func(typ string, e models.Entity) []string {
		var errs []string
		for _, field := range rules[typ] {
			v, ok := e[field]
			if !ok || v == nil {
				errs = append(errs, fmt.Sprintf("%s is required", field))
				continue
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Sprintf("%s cannot be empty", field))
			}
		}
		return errs
	}
}
