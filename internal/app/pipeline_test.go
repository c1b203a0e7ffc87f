package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/reportship/internal/adapters/fs"
	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/cleaner"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/ports"
	"github.com/bft-labs/reportship/internal/recipients"
	"github.com/bft-labs/reportship/internal/render"
)

const shoppersCSV = `VisitorType,Weekend,Revenue,PageValues,ExitRates,BounceRates
Returning_Visitor,FALSE,FALSE,0,0.2,0.2
New_Visitor,TRUE,TRUE,12.5,0.01,0
Returning_Visitor,TRUE,FALSE,3.25,0.05,0.02
`

type stubCharts struct{}

func (stubCharts) Draw(c domain.Chart) ([]byte, string, error) {
	return []byte("png"), domain.MIMEPNG, nil
}

type stubMail struct {
	mu   sync.Mutex
	sent []ports.Message
	err  error
}

func (m *stubMail) Send(_ context.Context, msg ports.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type memRunLog struct {
	mu      sync.Mutex
	records []domain.RunRecord
}

func (l *memRunLog) Append(_ context.Context, rec domain.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *memRunLog) Recent(_ context.Context, n int) ([]domain.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.records) {
		n = len(l.records)
	}
	return append([]domain.RunRecord(nil), l.records[len(l.records)-n:]...), nil
}

type fixture struct {
	cfg    PipelineConfig
	mail   *stubMail
	runLog *memRunLog
	outDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "online_shoppers_intention.csv")
	require.NoError(t, os.WriteFile(src, []byte(shoppersCSV), 0o644))

	return &fixture{
		cfg: PipelineConfig{
			Source: src,
			Clean:  cleaner.DefaultOptions(),
			Aggregate: &aggregate.Request{
				GroupKeys:  []string{"VisitorType"},
				SplitKey:   "Weekend",
				Measures:   []string{"PageValues"},
				Statistics: []aggregate.Statistic{aggregate.Mean},
			},
			Render: []render.Spec{
				{Name: "pivot", Kind: render.KindCSV},
				{Name: "visitors", Kind: render.KindPie, Columns: []string{"VisitorType"}},
			},
			AllowPartialRender: true,
			Recipients:         recipients.Static{Addresses: []string{"ops@example.com"}},
			Subject:            "Daily report {date}",
			Body:               "Attached.",
		},
		mail:   &stubMail{},
		runLog: &memRunLog{},
		outDir: filepath.Join(dir, "out"),
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(f.cfg, PipelineDeps{
		Charts: stubCharts{},
		Mail:   f.mail,
		From:   "reports@example.com",
		Store:  fs.NewArtifactDir(f.outDir),
		RunLog: f.runLog,
		Clock:  func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) },
	})
}

func TestPipeline_Succeeds(t *testing.T) {
	f := newFixture(t)

	rec := f.pipeline().Run(context.Background(), domain.TriggerSchedule)

	require.Equal(t, domain.RunSucceeded, rec.Status, rec.Error)
	assert.Equal(t, domain.StageDone, rec.Stage)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 3, rec.Rows)
	assert.Equal(t, 1, rec.Recipients)
	assert.Len(t, rec.Artifacts, 2)
	assert.FileExists(t, filepath.Join(f.outDir, "pivot.csv"))
	assert.FileExists(t, filepath.Join(f.outDir, "visitors.png"))

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "Daily report 2026-03-10", f.mail.sent[0].Subject)
	assert.Len(t, f.mail.sent[0].Attachments, 2)

	require.Len(t, f.runLog.records, 1)
	assert.Equal(t, rec.ID, f.runLog.records[0].ID)
}

func TestPipeline_MissingSourceFailsAtIngest(t *testing.T) {
	f := newFixture(t)
	f.cfg.Source = filepath.Join(t.TempDir(), "missing.csv")

	rec := f.pipeline().Run(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.StageIngest, rec.Stage)
	assert.Contains(t, rec.Error, domain.ErrNotFound.Error())
	assert.Empty(t, rec.Artifacts)
	assert.NoDirExists(t, f.outDir)
	assert.Empty(t, f.mail.sent)
	assert.Len(t, f.runLog.records, 1)
}

func TestPipeline_AggregateFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.cfg.Aggregate.Measures = []string{"NoSuchMeasure"}

	rec := f.pipeline().Run(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.StageAggregate, rec.Stage)
	assert.Empty(t, f.mail.sent)
}

func TestPipeline_PartialRender(t *testing.T) {
	f := newFixture(t)
	f.cfg.Render = append(f.cfg.Render, render.Spec{Name: "broken", Kind: render.KindBar, Columns: []string{"Nope", "PageValues"}})

	rec := f.pipeline().Run(context.Background(), domain.TriggerManual)
	require.Equal(t, domain.RunSucceeded, rec.Status)
	require.Len(t, rec.RenderFailures, 1)
	assert.Equal(t, "broken", rec.RenderFailures[0].Spec)
	assert.Len(t, f.mail.sent[0].Attachments, 2)

	f.cfg.AllowPartialRender = false
	f.mail = &stubMail{}
	rec = f.pipeline().Run(context.Background(), domain.TriggerManual)
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.StageRender, rec.Stage)
	assert.Empty(t, f.mail.sent)
}

func TestPipeline_NoRecipientColumnSkipsDelivery(t *testing.T) {
	f := newFixture(t)
	f.cfg.Recipients = recipients.FromTableColumn{}

	rec := f.pipeline().Run(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.RunSucceededSkippedDelivery, rec.Status)
	assert.Equal(t, 0, rec.Recipients)
	assert.Empty(t, f.mail.sent)
	assert.FileExists(t, filepath.Join(f.outDir, "pivot.csv"))
}

func TestPipeline_DeliveryFailureKeepsArtifacts(t *testing.T) {
	f := newFixture(t)
	f.mail.err = &domain.DeliveryError{Reason: domain.DeliveryReasonAuth, Err: errors.New("535")}

	rec := f.pipeline().Run(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.StageDistribute, rec.Stage)
	assert.Contains(t, rec.Error, "auth")
	assert.FileExists(t, filepath.Join(f.outDir, "pivot.csv"))
}

func TestPipeline_AddressFileMissingFailsAtResolve(t *testing.T) {
	f := newFixture(t)
	f.cfg.Recipients = recipients.FromAddressFile{Path: filepath.Join(t.TempDir(), "email_list.xlsx")}

	rec := f.pipeline().Run(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.StageResolve, rec.Stage)
}

type panickingCharts struct{}

func (panickingCharts) Draw(domain.Chart) ([]byte, string, error) {
	panic("font cache corrupted")
}

func TestPipeline_PanicFailsStageAndIsLogged(t *testing.T) {
	f := newFixture(t)
	p := NewPipeline(f.cfg, PipelineDeps{
		Charts: panickingCharts{},
		Mail:   f.mail,
		Store:  fs.NewArtifactDir(f.outDir),
		RunLog: f.runLog,
	})

	rec := p.Run(context.Background(), domain.TriggerManual)

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.StageRender, rec.Stage)
	assert.Contains(t, rec.Error, "font cache corrupted")
	assert.False(t, rec.FinishedAt.IsZero())
	require.Len(t, f.runLog.records, 1)
	assert.Equal(t, rec.ID, f.runLog.records[0].ID)
	assert.Empty(t, f.mail.sent)
}
