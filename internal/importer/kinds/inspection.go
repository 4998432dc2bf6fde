package kinds

import (
	"fmt"

	"github.com/fieldserve/fieldserve/internal/importer"
)

func init() {
	importer.Register(importer.Definition{
		Kind:  importer.KindInspection,
		Label: "Inspection records",
		Fields: []importer.FieldSpec{
			{Name: "deviceSerial", Required: true, Aliases: []string{"serial", "serialNumber", "device"}},
			{Name: "date", Required: true, Type: importer.FieldDate, Aliases: []string{"inspectedOn", "inspectionDate"}},
			{Name: "result", Type: importer.FieldEnum, EnumValues: []string{"passed", "failed", "pending"}, Aliases: []string{"outcome", "status"}},
			{Name: "inspector", Aliases: []string{"technician", "inspectedBy"}},
			{Name: "notes", Aliases: []string{"comment", "remarks"}},
		},
		Build: buildInspection,
	})
}

func buildInspection(vals importer.Values, rowNum int) (importer.Record, []importer.Issue) {
	raw := vals["date"]
	t, ambiguous, valid := importer.ParseDate(raw)
	if !valid {
		return nil, []importer.Issue{{
			RowNumber:     rowNum,
			Level:         importer.LevelError,
			Field:         "date",
			Message:       fmt.Sprintf("unparseable date %q", raw),
			OriginalValue: raw,
		}}
	}

	rec := importer.InspectionRecord{
		DeviceSerial: vals["deviceSerial"],
		InspectedOn:  t,
		Result:       vals["result"],
		Inspector:    vals["inspector"],
		Notes:        vals["notes"],
	}
	if rec.Result == "" {
		rec.Result = "pending"
	}

	var issues []importer.Issue
	if ambiguous {
		issues = append(issues, ambiguousDateWarning(rowNum, "date", raw))
	}
	return rec, issues
}
