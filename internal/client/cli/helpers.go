package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/template"

	"github.com/iudanet/entitysync/internal/models"
)

type fieldView struct {
	Name  string
	Value string
}

type entityView struct {
	Type   string
	Fields []fieldView
	ID     int64
	Width  int
	Local  bool
}

// newEntityView раскладывает сущность в отсортированные поля для вывода
func newEntityView(typ string, e models.Entity) entityView {
	view := entityView{Type: typ, ID: e.ID(), Local: e.IsLocal()}

	names := make([]string, 0, len(e))
	for name := range e {
		if name != models.FieldID {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		view.Fields = append(view.Fields, fieldView{Name: name, Value: formatValue(e[name])})
		if len(name) > view.Width {
			view.Width = len(name)
		}
	}
	return view
}

// formatValue печатает строки как есть, остальное в JSON
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", arg, err)
		}
		if id == 0 {
			return nil, fmt.Errorf("invalid ID %q: must not be zero", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func render(w io.Writer, name, text string, data any) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// resultError превращает ошибки результатов в ошибку команды
func resultError(action string, results []models.TransactionResult) error {
	errs := models.CollectErrors(results)
	if len(errs) == 0 {
		return nil
	}
	for _, r := range results {
		if r.Cancelled {
			return fmt.Errorf("%s cancelled: %v", action, errs)
		}
	}
	return fmt.Errorf("%s failed: %v", action, errs)
}
