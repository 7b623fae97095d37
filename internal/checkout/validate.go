package checkout

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ValidationError carries a field-to-message map so the caller can surface
// the problems next to the offending form fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid checkout fields: %s", strings.Join(names, ", "))
}

var (
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
)

// Validate checks the checkout form fields and reports every problem at once.
func Validate(shipping ShippingInfo, payment PaymentInfo) error {
	fields := map[string]string{}

	if shipping.FirstName == "" {
		fields["first_name"] = "first name is required"
	}
	if shipping.LastName == "" {
		fields["last_name"] = "last name is required"
	}
	switch {
	case shipping.Email == "":
		fields["email"] = "email is required"
	case !emailPattern.MatchString(shipping.Email):
		fields["email"] = "email is invalid"
	}
	if shipping.Address == "" {
		fields["address"] = "address is required"
	}
	if shipping.City == "" {
		fields["city"] = "city is required"
	}
	if shipping.State == "" {
		fields["state"] = "state is required"
	}
	if shipping.Zip == "" {
		fields["zip"] = "zip code is required"
	}

	if payment.CardName == "" {
		fields["card_name"] = "name on card is required"
	}
	number := strings.ReplaceAll(payment.CardNumber, " ", "")
	switch {
	case number == "":
		fields["card_number"] = "card number is required"
	case !cardNumberPattern.MatchString(number):
		fields["card_number"] = "card number is invalid"
	}
	if payment.ExpMonth == "" {
		fields["exp_month"] = "expiration month is required"
	}
	if payment.ExpYear == "" {
		fields["exp_year"] = "expiration year is required"
	}
	switch {
	case payment.CVV == "":
		fields["cvv"] = "cvv is required"
	case !cvvPattern.MatchString(payment.CVV):
		fields["cvv"] = "cvv is invalid"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
