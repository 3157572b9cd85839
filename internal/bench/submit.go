package bench

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/proteobench/benchcore/internal/artifact"
	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/metrics"
	"github.com/proteobench/benchcore/internal/repo"
	"github.com/proteobench/benchcore/internal/util"
)

// DatasetURLFormat is where the data bundle of a hash is published
const DatasetURLFormat = "https://proteobench.cubimed.rub.de/datasets/%s/"

const defaultComments = "no comments"

// SubmitRequest describes a submission of a temporary datapoint
type SubmitRequest struct {
	Datapoint *datapoint.Datapoint
	Token     string
	User      string // push user, the bot account when empty
	Comments  string // shown in the pull request

	// Bundle is written to the artifact directory after the pull request
	// is open. Hash and an empty Comment are filled from the datapoint.
	Bundle *artifact.Bundle
}

// Submission is the outcome of a successful submit
type Submission struct {
	State        State
	PR           *repo.PrHandle
	Branch       string
	Datapoint    *datapoint.Datapoint // the submitted copy
	ArtifactPath string
}

// BranchName derives a unique branch from a datapoint id. Resubmitting
// the same id yields a new branch each time.
func BranchName(id string, now time.Time) string {
	clean := strings.NewReplacer(" ", "_", "(", "", ")", "").Replace(id)
	seed := now.Format(time.RFC3339Nano) + "_" + uuid.NewString()
	return clean + "_" + util.ShortSHA256(seed, 10)
}

// DatasetURL returns the public location of the data bundle of hash
func DatasetURL(hash string) string {
	return fmt.Sprintf(DatasetURLFormat, hash)
}

// Submit opens a pull request adding req.Datapoint to the module's
// archive. req.Datapoint is not modified: on failure it stays temporary
// and can be submitted again.
func (m *Module) Submit(ctx context.Context, req *SubmitRequest) (sub *Submission, err error) {
	const op = "submit"
	ctx, span := tracer.Start(ctx, "bench.Submit", trace.WithAttributes(attribute.String("bench.module", m.id)))
	start := time.Now()
	var id, branch string
	defer func() {
		prURL := ""
		if sub != nil {
			prURL = sub.PR.URL
		}
		m.logger.LogSubmit(m.id, id, branch, prURL, err)
		m.metrics.Submitted(m.id, err)
		m.metrics.Since(metrics.StageSubmit, start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("bench.pr_url", prURL))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if m.repo == nil {
		return nil, util.Errorf(util.KindSubmission, op, "remote", "no remote configured")
	}
	if req.Datapoint == nil || req.Datapoint.IntermediateHash == "" {
		return nil, util.Errorf(util.KindSubmission, op, "datapoint", "no datapoint to submit: %w", util.ErrInvalidConfig)
	}
	if req.Token == "" {
		return nil, util.Errorf(util.KindSubmission, op, "token", "a token is required to submit")
	}
	id = req.Datapoint.ID

	dp := req.Datapoint.Clone()
	dp.IsTemporary = false
	dp.OldNew = ""
	comments := req.Comments
	if comments == "" {
		comments = defaultComments
	}
	comments += "\n\nDataset URL: " + DatasetURL(dp.IntermediateHash)
	dp.SubmissionComments = datapoint.Text(comments)

	dir, err := os.MkdirTemp(m.tempDir, "pbench-pr-")
	if err != nil {
		return nil, util.NewKindError(util.KindSubmission, op, "workdir", err)
	}
	defer os.RemoveAll(dir)

	if err := m.repo.Clone(ctx, dir); err != nil {
		m.markFailed(id, err)
		return nil, err
	}
	existing, err := datapoint.ReadDir(dir)
	if err != nil {
		m.markFailed(id, err)
		return nil, util.NewKindError(util.KindSubmission, "read archive", dir, err)
	}
	if !existing.CheckNewUniqueHash(dp) {
		err := util.Errorf(util.KindSubmission, op, dp.IntermediateHash, "the run was previously submitted: %w", util.ErrDuplicate)
		m.markFailed(id, err)
		return nil, err
	}

	body, err := dp.Encode()
	if err != nil {
		return nil, util.NewKindError(util.KindSubmission, op, "datapoint", err)
	}

	branch = BranchName(dp.ID, m.now())
	pr := repo.PullRequest{
		Dir:    dir,
		Branch: branch,
		Files:  map[string][]byte{dp.FileName(): body},
		Title:  "Added new run with id " + branch,
		Body:   "User comments: " + comments,
	}
	handle, err := m.repo.OpenPR(ctx, pr, repo.Credentials{User: req.User, Token: req.Token})
	if err != nil {
		m.markFailed(id, err)
		return nil, err
	}
	util.SuccessLog("Opened pull request %s", handle.URL)

	state := StateTemporary
	if err := state.advance(StateSubmitted); err != nil {
		return nil, err
	}
	sub = &Submission{State: state, PR: handle, Branch: branch, Datapoint: dp}

	if m.store != nil {
		if serr := m.store.MarkSubmitted(id, handle.URL, string(body)); serr != nil {
			util.DebugLog("Run %s not updated in history: %v", id, serr)
		}
	}

	if req.Bundle != nil && m.artifactDir != "" {
		b := *req.Bundle
		b.Hash = dp.IntermediateHash
		if b.Comment == "" {
			b.Comment = comments
		}
		path, aerr := artifact.Write(m.artifactDir, b)
		if aerr != nil {
			util.WarnLog("Pull request is open but the data bundle was not written: %v", aerr)
		} else {
			sub.ArtifactPath = path
			util.InfoLog("Wrote data bundle %s", path)
		}
	}

	return sub, nil
}

func (m *Module) markFailed(id string, cause error) {
	if m.store == nil {
		return
	}
	if err := m.store.MarkFailed(id, cause.Error()); err != nil {
		util.DebugLog("Run %s not updated in history: %v", id, err)
	}
}
