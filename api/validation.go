package api

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	engerr "github.com/solroute/orderengine/pkg/errors"
	"github.com/solroute/orderengine/pkg/models"
)

var (
	tokenAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Z]{32,34}$`)
	amountRe       = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("token_address", func(fl validator.FieldLevel) bool {
		return tokenAddressRe.MatchString(fl.Field().String())
	})
	v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !amountRe.MatchString(s) {
			return false
		}
		d, err := decimal.NewFromString(s)
		return err == nil && d.IsPositive()
	})
	return v
}

// validateOrderRequest checks the request and applies the default slippage
// tolerance of 0.5%.
func validateOrderRequest(req *models.OrderRequest) error {
	if req.SlippageTolerance == 0 {
		req.SlippageTolerance = 0.5
	}
	if err := validate.Struct(req); err != nil {
		return engerr.Wrap(engerr.KindValidation, "Request validation failed", err)
	}
	return nil
}
