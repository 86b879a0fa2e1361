// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("strategy", validateStrategy)
		_ = v.RegisterValidation("payment_method", validatePaymentMethod)
		_ = v.RegisterValidation("currency_amount", validateCurrencyAmount)
		_ = v.RegisterValidation("due_day", validateDueDay)
	}
}

func validateStrategy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "snowball", "avalanche":
		return true
	}
	return false
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "bank_transfer", "credit_card", "debit_card", "check", "cash", "auto_pay", "other":
		return true
	}
	return false
}

// validateCurrencyAmount accepts strings that parse as a positive amount
// with at most two decimal places.
func validateCurrencyAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Exponent() >= -2
}

func validateDueDay(fl validator.FieldLevel) bool {
	day := fl.Field().Int()
	return day >= 1 && day <= 28
}
