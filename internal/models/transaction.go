package models

// TransactionResult — результат сохранения/удаления одной сущности.
// ClientID хранит идентификатор, который сущность имела до операции,
// и позволяет сопоставить результат с отправленным пакетом.
type TransactionResult struct {
	Type     string   `json:"Type"`
	Errors   []string `json:"Errors"`
	ClientID int64    `json:"ClientID"`
	ID       int64    `json:"ID"`

	// Cancelled is set when a pre-save hook vetoed the operation.
	Cancelled bool `json:"-"`
}

// OK reports whether the result carries no errors.
func (r TransactionResult) OK() bool {
	return len(r.Errors) == 0
}

// Promoted reports whether a local temporary ID was replaced by a server ID.
func (r TransactionResult) Promoted() bool {
	return r.ClientID <= 0 && r.ID > 0 && r.ClientID != r.ID
}

// ErrorResult builds a failed result for an entity that never reached storage.
func ErrorResult(typ string, id int64, errs ...string) TransactionResult {
	return TransactionResult{
		ClientID: id,
		ID:       id,
		Type:     typ,
		Errors:   errs,
	}
}

// CollectErrors aggregates the errors of every result in order.
func CollectErrors(results []TransactionResult) []string {
	var errs []string
	for _, r := range results {
		errs = append(errs, r.Errors...)
	}
	return errs
}
