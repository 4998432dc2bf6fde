package job

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/importer"
	"github.com/fieldserve/fieldserve/internal/logging"
)

// archiveMember is one CSV inside an uploaded ZIP, typed by filename.
type archiveMember struct {
	name string
	kind importer.Kind
	file *zip.File
}

// kindRank orders members by entity dependency: customers must exist before
// the devices that reference them, and both before their dependent records.
var kindRank = map[importer.Kind]int{
	importer.KindCustomer:      0,
	importer.KindDevice:        1,
	importer.KindInspection:    2,
	importer.KindCommunication: 3,
}

// runArchive splits a ZIP payload into one child job per member and runs
// them in dependency order, each child only after the previous one reached
// a terminal state. A failed stage is reported and the chain continues —
// stages are independent.
func (r *runner) runArchive(ctx context.Context, jb *Job) {
	start := time.Now()
	logger := logging.WithFields(ctx, "job_id", jb.ID, "kind", "archive", "file", jb.Filename)

	r.publish(jb.ID, Status{State: StateParsing, Progress: 0})

	zr, err := zip.NewReader(bytes.NewReader(jb.Payload), int64(len(jb.Payload)))
	if err != nil {
		logger.Warn("archive rejected", "error", err)
		r.fail(jb.ID, fmt.Errorf("payload is not a valid ZIP archive: %w", err))
		return
	}

	members, tally := collectMembers(zr)
	if len(members) == 0 {
		r.fail(jb.ID, fmt.Errorf("archive contains no importable CSV members"))
		return
	}

	r.publish(jb.ID, Status{State: StateParsing, Progress: 100})

	var done, succeeded, failed int
	for _, m := range members {
		data, err := readMember(m.file)
		if err != nil {
			failed++
			done++
			tally.AddIssues(importer.Issue{
				Level:   importer.LevelError,
				Message: fmt.Sprintf("%s: cannot read archive member: %v", m.name, err),
			})
			r.publishArchiveProgress(jb.ID, done, len(members), succeeded, failed)
			continue
		}

		child := &Job{
			ID:          uuid.New().String(),
			Kind:        m.kind,
			Filename:    m.name,
			Payload:     data,
			SubmittedAt: time.Now(),
		}
		logger.Info("archive stage started", "member", m.name, "child_job_id", child.ID)
		r.publish(child.ID, Status{State: StateQueued, Position: 0})

		report, err := r.runImport(ctx, child)
		if err != nil {
			failed++
			tally.AddIssues(importer.Issue{
				Level:   importer.LevelError,
				Message: fmt.Sprintf("%s: stage failed: %v", m.name, err),
			})
		} else {
			succeeded++
			tally.TotalRows += report.TotalRows
			tally.Imported += report.ImportedCount
			tally.Updated += report.UpdatedCount
			for _, issue := range report.Issues {
				issue.Message = fmt.Sprintf("%s: %s", m.name, issue.Message)
				tally.AddIssues(issue)
			}
		}

		done++
		r.publishArchiveProgress(jb.ID, done, len(members), succeeded, failed)
	}

	report := importer.BuildReport(jb.Filename, start, tally)
	r.publish(jb.ID, Status{State: StateCompleted, Report: &report})
	logger.Info("archive completed", "stages", len(members), "failed_stages", failed)
}

func (r *runner) publishArchiveProgress(jobID string, done, total, succeeded, failed int) {
	r.publish(jobID, Status{
		State:     StateImporting,
		Processed: done,
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// collectMembers picks the importable CSV members of the archive and sorts
// them by dependency rank, ties broken by name so the order is
// deterministic. Members whose kind cannot be inferred are reported as
// issues and skipped.
func collectMembers(zr *zip.Reader) ([]archiveMember, importer.Tally) {
	var (
		members []archiveMember
		tally   importer.Tally
	)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if !strings.EqualFold(path.Ext(name), ".csv") {
			continue
		}

		kind, ok := inferMemberKind(name)
		if !ok {
			tally.AddIssues(importer.Issue{
				Level:   importer.LevelWarning,
				Message: fmt.Sprintf("%s: cannot infer entity kind from member name, skipped", name),
			})
			continue
		}

		members = append(members, archiveMember{name: name, kind: kind, file: f})
	}

	sort.SliceStable(members, func(i, j int) bool {
		if kindRank[members[i].kind] != kindRank[members[j].kind] {
			return kindRank[members[i].kind] < kindRank[members[j].kind]
		}
		return members[i].name < members[j].name
	})

	return members, tally
}

// inferMemberKind types an archive member by filename substring.
func inferMemberKind(name string) (importer.Kind, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "customer"):
		return importer.KindCustomer, true
	case strings.Contains(lower, "device"):
		return importer.KindDevice, true
	case strings.Contains(lower, "inspection"):
		return importer.KindInspection, true
	case strings.Contains(lower, "communication"), strings.Contains(lower, "log"):
		return importer.KindCommunication, true
	default:
		return "", false
	}
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
