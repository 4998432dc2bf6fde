package kinds

import (
	"fmt"

	"github.com/fieldserve/fieldserve/internal/importer"
)

func init() {
	importer.Register(importer.Definition{
		Kind:  importer.KindCommunication,
		Label: "Communication log",
		Fields: []importer.FieldSpec{
			{Name: "customerName", Required: true, Aliases: []string{"customer", "name"}},
			{Name: "date", Required: true, Type: importer.FieldDate, Aliases: []string{"occurredOn", "contactDate"}},
			{Name: "channel", Type: importer.FieldEnum, EnumValues: []string{"phone", "email", "sms", "visit"}, Aliases: []string{"medium", "contactType"}},
			{Name: "summary", Aliases: []string{"note", "message", "subject"}},
		},
		Build: buildCommunication,
	})
}

func buildCommunication(vals importer.Values, rowNum int) (importer.Record, []importer.Issue) {
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

	rec := importer.CommunicationRecord{
		CustomerName: vals["customerName"],
		OccurredOn:   t,
		Channel:      vals["channel"],
		Summary:      vals["summary"],
	}
	if rec.Channel == "" {
		rec.Channel = "phone"
	}

	var issues []importer.Issue
	if ambiguous {
		issues = append(issues, ambiguousDateWarning(rowNum, "date", raw))
	}
	return rec, issues
}
