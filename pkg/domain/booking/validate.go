package booking

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/anthonyagughasi/haircut-website/pkg/repository/model"
	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

var validate = validator.New()

// MissingFields lists the customer fields that block submission, in form order.
// Email is format-checked whenever it is filled and required when requireEmail is set.
func MissingFields(d model.CustomerDetails, requireEmail bool) []string {
	var out []string
	if validate.Var(strings.TrimSpace(d.Name), "required") != nil {
		out = append(out, "name")
	}
	if validate.Var(strings.TrimSpace(d.Phone), "required") != nil {
		out = append(out, "phone")
	}
	emailRule := "omitempty,email"
	if requireEmail {
		emailRule = "required,email"
	}
	if validate.Var(strings.TrimSpace(d.Email), emailRule) != nil {
		out = append(out, "email")
	}
	return out
}

func ValidateDetails(d model.CustomerDetails, requireEmail bool) error {
	missing := MissingFields(d, requireEmail)
	if len(missing) == 0 {
		return nil
	}
	return errs.New("invalid customer details").
		Kind(errs.KindValidation).
		Arg("fields", strings.Join(missing, ","))
}
