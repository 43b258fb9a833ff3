package handlers

import (
	"errors"
	"sync"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerValidatorsOnce sync.Once

// RegisterValidators adds the custom binding tags used by the request DTOs to gin's validator.
func RegisterValidators() error {
	var err error
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = v.RegisterValidation("billable_kind", func(fl validator.FieldLevel) bool {
			return domain.OperationKind(fl.Field().String()).IsBillable()
		})
	})
	return err
}
