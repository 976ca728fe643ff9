package datamanager

import (
	"github.com/iudanet/entitysync/internal/models"
)

// VetoMessage is the error recorded on results of saves cancelled by OnPreSave.
const VetoMessage = "save cancelled by pre-save hook"

// Hooks are caller callbacks run before any write is attempted.
type Hooks struct {
	// OnPreSave may cancel a save by returning false
	OnPreSave func(typ string, e models.Entity) bool

	// OnValidateEntity returns validation errors, none means valid
	OnValidateEntity func(typ string, e models.Entity) []string
}

// check runs both hooks for one entity.
// Returns a non-nil result when the save must not proceed.
func (h Hooks) check(typ string, e models.Entity) *models.TransactionResult {
	if h.OnPreSave != nil && !h.OnPreSave(typ, e) {
		res := models.ErrorResult(typ, e.ID(), VetoMessage)
		res.Cancelled = true
		return &res
	}

	if h.OnValidateEntity != nil {
		if errs := h.OnValidateEntity(typ, e); len(errs) > 0 {
			res := models.ErrorResult(typ, e.ID(), errs...)
			return &res
		}
	}

	return nil
}
