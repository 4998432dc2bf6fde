package kinds

import (
	"fmt"

	"github.com/fieldserve/fieldserve/internal/importer"
)

func init() {
	importer.Register(importer.Definition{
		Kind:  importer.KindDevice,
		Label: "Devices",
		Fields: []importer.FieldSpec{
			{Name: "serialNumber", Required: true, Aliases: []string{"serial", "serialNo", "sn"}},
			{Name: "model", Aliases: []string{"type", "deviceType"}},
			{Name: "customerName", Aliases: []string{"customer", "owner"}},
			{Name: "installedOn", Type: importer.FieldDate, Aliases: []string{"installed", "installDate", "installationDate"}},
			{Name: "location", Aliases: []string{"site", "position"}},
		},
		Build: buildDevice,
	})
}

func buildDevice(vals importer.Values, rowNum int) (importer.Record, []importer.Issue) {
	rec := importer.DeviceRecord{
		SerialNumber: vals["serialNumber"],
		Model:        vals["model"],
		CustomerName: vals["customerName"],
		Location:     vals["location"],
	}

	var issues []importer.Issue

	if raw, ok := vals["installedOn"]; ok {
		t, ambiguous, valid := importer.ParseDate(raw)
		if !valid {
			return nil, []importer.Issue{{
				RowNumber:     rowNum,
				Level:         importer.LevelError,
				Field:         "installedOn",
				Message:       fmt.Sprintf("unparseable date %q", raw),
				OriginalValue: raw,
			}}
		}
		if ambiguous {
			issues = append(issues, ambiguousDateWarning(rowNum, "installedOn", raw))
		}
		rec.InstalledOn = t
	}

	return rec, issues
}

func ambiguousDateWarning(rowNum int, field, raw string) importer.Issue {
	return importer.Issue{
		RowNumber:     rowNum,
		Level:         importer.LevelWarning,
		Field:         field,
		Message:       fmt.Sprintf("date %q is ambiguous, read day-first", raw),
		OriginalValue: raw,
	}
}
