// Package kinds registers the row mapper for every importable entity kind.
// Importing this package (usually for side effects from main) populates the
// importer registry.
package kinds

import (
	"fmt"
	"strings"

	"github.com/fieldserve/fieldserve/internal/importer"
)

func init() {
	importer.Register(importer.Definition{
		Kind:  importer.KindCustomer,
		Label: "Customers",
		Fields: []importer.FieldSpec{
			{Name: "name", Required: true, Aliases: []string{"customer", "customerName", "company"}},
			{Name: "street", Aliases: []string{"address", "street1"}},
			{Name: "city", Aliases: []string{"town"}},
			{Name: "postalCode", Type: importer.FieldPostal, Aliases: []string{"zip", "zipCode", "plz", "postcode"}, Normalizer: importer.NormalizePostalCode},
			{Name: "country", Aliases: []string{"countryCode"}},
			{Name: "phone", Type: importer.FieldPhone, Aliases: []string{"phoneNumber", "tel", "telephone"}, Normalizer: importer.NormalizePhone},
			{Name: "email", Aliases: []string{"mail", "emailAddress"}},
		},
		Build: buildCustomer,
	})
}

func buildCustomer(vals importer.Values, rowNum int) (importer.Record, []importer.Issue) {
	rec := importer.CustomerRecord{
		Name:       vals["name"],
		Street:     vals["street"],
		City:       vals["city"],
		PostalCode: vals["postalCode"],
		Country:    vals["country"],
		Phone:      vals["phone"],
		Email:      vals["email"],
	}

	var issues []importer.Issue

	// Address rows without a country default to the dominant source locale.
	hasAddress := rec.Street != "" || rec.City != "" || rec.PostalCode != ""
	if hasAddress && rec.Country == "" {
		rec.Country = importer.DefaultCountry
	}

	if rec.Email != "" && !strings.Contains(rec.Email, "@") {
		issues = append(issues, importer.Issue{
			RowNumber:     rowNum,
			Level:         importer.LevelWarning,
			Field:         "email",
			Message:       fmt.Sprintf("email address %q looks invalid", rec.Email),
			OriginalValue: rec.Email,
		})
	}

	return rec, issues
}
