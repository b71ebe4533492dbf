package selfupdate

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/build"
	"pilot/pkg/metrics"
	"pilot/pkg/validation"
)

type fakeValidator struct {
	result validation.Result
	calls  int
}

func (f *fakeValidator) Run(context.Context, string) validation.Result {
	f.calls++
	return f.result
}

type fakeReverter struct {
	err   error
	paths []string
}

func (f *fakeReverter) RevertFile(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type fakeBuilder struct {
	compile  build.Result
	pkg      build.Result
	compiles int
	packages int
}

func (f *fakeBuilder) Compile(context.Context) build.Result {
	f.compiles++
	return f.compile
}

func (f *fakeBuilder) Package(context.Context) build.Result {
	f.packages++
	return f.pkg
}

func (f *fakeBuilder) RunCommand(context.Context, []string) (int, string) { return 0, "" }

type rollbackRecorder struct {
	metrics.NoopRecorder
	outcomes []string
}

func (r *rollbackRecorder) IncRollback(outcome string) { r.outcomes = append(r.outcomes, outcome) }

type harness struct {
	store     *Store
	validator *fakeValidator
	reverter  *fakeReverter
	builder   *fakeBuilder
	restarts  int
	restart   error
	recorder  *rollbackRecorder
	protocol  *Protocol
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, command string) *harness {
	t.Helper()
	h := &harness{
		store:     NewStore(t.TempDir()),
		validator: &fakeValidator{result: validation.Result{ExitCode: 1, Output: "FAIL"}},
		reverter:  &fakeReverter{},
		builder:   &fakeBuilder{compile: build.Result{Success: true}, pkg: build.Result{Success: true}},
		recorder:  &rollbackRecorder{},
	}
	p, err := NewProtocol(ProtocolDeps{
		Store:             h.store,
		ValidationCommand: command,
		Validator:         h.validator,
		Reverter:          h.reverter,
		Builder:           h.builder,
		Restarter: RestarterFunc(func() error {
			h.restarts++
			return h.restart
		}),
		MaxAttempts: 2,
		Recorder:    h.recorder,
		Now:         func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	h.protocol = p
	return h
}

func (h *harness) seed(t *testing.T, attempt int) {
	t.Helper()
	require.NoError(t, h.store.Save(&Sentinel{
		FilePath:        "pkg/tools/read_file.go",
		CommitMessage:   "faster reads",
		TimestampMillis: 1,
		Attempt:         attempt,
	}))
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSentinel)
	assert.False(t, store.Exists())

	in := &Sentinel{FilePath: "main.go", CommitMessage: "msg", TimestampMillis: 42, Attempt: 1}
	require.NoError(t, store.Save(in))
	assert.True(t, store.Exists())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "filePath: main.go")
	assert.Contains(t, string(data), "attempt: 1")

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
}

func TestStoreRejectsInvalid(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.Error(t, store.Save(&Sentinel{FilePath: "x.go", Attempt: 0}))
	assert.Error(t, store.Save(&Sentinel{Attempt: 1}))
}

func TestRunNoSentinel(t *testing.T) {
	h := newHarness(t, "make test")

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Proceed, report.Decision)
	assert.Equal(t, OutcomeNoSentinel, report.Outcome)
	assert.Zero(t, h.validator.calls)
	assert.Equal(t, []string{"no_sentinel"}, h.recorder.outcomes)
}

func TestRunUnreadableSentinel(t *testing.T) {
	h := newHarness(t, "make test")
	require.NoError(t, os.WriteFile(h.store.Path(), []byte("attempt: [oops"), 0o644))

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Proceed, report.Decision)
	assert.Equal(t, OutcomeUnreadable, report.Outcome)
	assert.False(t, h.store.Exists())
	assert.Zero(t, h.validator.calls)
}

func TestRunNoValidationCommand(t *testing.T) {
	h := newHarness(t, "   ")
	h.seed(t, 1)

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Proceed, report.Decision)
	assert.Equal(t, OutcomeNoValidation, report.Outcome)
	assert.False(t, h.store.Exists())
	assert.Zero(t, h.validator.calls)
}

func TestRunValidationPasses(t *testing.T) {
	h := newHarness(t, "make test")
	h.validator.result = validation.Result{Success: true}
	h.seed(t, 1)

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeValidated, report.Outcome)
	assert.False(t, h.store.Exists())
	assert.Empty(t, h.reverter.paths)
}

func TestRunMaxAttemptsReached(t *testing.T) {
	h := newHarness(t, "make test")
	h.seed(t, 2)

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Proceed, report.Decision)
	assert.Equal(t, OutcomeManualIntervention, report.Outcome)
	assert.False(t, h.store.Exists())
	assert.Empty(t, h.reverter.paths)
	assert.Zero(t, h.restarts)
	assert.Contains(t, report.String(), "manual intervention required")
}

func TestRunRollbackAndRestart(t *testing.T) {
	h := newHarness(t, "make test")
	h.seed(t, 1)

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Restart, report.Decision)
	assert.Equal(t, OutcomeRestarted, report.Outcome)
	assert.Equal(t, []string{"pkg/tools/read_file.go"}, h.reverter.paths)
	assert.Equal(t, 1, h.builder.compiles)
	assert.Equal(t, 1, h.builder.packages)
	assert.Equal(t, 1, h.restarts)

	next, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, &Sentinel{
		FilePath:        "pkg/tools/read_file.go",
		CommitMessage:   "faster reads",
		TimestampMillis: fixedNow.UnixMilli(),
		Attempt:         2,
	}, next)
	assert.Equal(t, []string{"restarted"}, h.recorder.outcomes)
}

func TestRunFailurePathsDeleteSentinel(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		outcome Outcome
	}{
		{
			name:    "revert fails",
			setup:   func(h *harness) { h.reverter.err = errors.New("no history") },
			outcome: OutcomeRevertFailed,
		},
		{
			name:    "compile fails",
			setup:   func(h *harness) { h.builder.compile = build.Result{Output: "undefined: x"} },
			outcome: OutcomeCompileFailed,
		},
		{
			name:    "package fails",
			setup:   func(h *harness) { h.builder.pkg = build.Result{Output: "disk full"} },
			outcome: OutcomePackageFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "make test")
			h.seed(t, 1)
			tt.setup(h)

			report, err := h.protocol.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Proceed, report.Decision)
			assert.Equal(t, tt.outcome, report.Outcome)
			assert.False(t, h.store.Exists())
			assert.Zero(t, h.restarts)
		})
	}
}

func TestRunCompileFailureReportsBrokenBuild(t *testing.T) {
	h := newHarness(t, "make test")
	h.seed(t, 1)
	h.builder.compile = build.Result{Output: "undefined: x"}

	report, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.String(), "reverted but fails to build")
	assert.Zero(t, h.builder.packages)
}

func TestRunRestartFailure(t *testing.T) {
	h := newHarness(t, "make test")
	h.seed(t, 1)
	h.restart = errors.New("exec format error")

	report, err := h.protocol.Run(context.Background())
	require.ErrorIs(t, err, ErrRestartFailed)
	assert.Equal(t, OutcomeRestartFailed, report.Outcome)

	next, loadErr := h.store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, 2, next.Attempt)
}

func TestAttemptNeverRepeatsAcrossStarts(t *testing.T) {
	h := newHarness(t, "make test")
	h.seed(t, 1)

	first, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Restart, first.Decision)

	second, err := h.protocol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Proceed, second.Decision)
	assert.Equal(t, OutcomeManualIntervention, second.Outcome)
	assert.False(t, h.store.Exists())
}

type fakeCommitter struct {
	err     error
	path    string
	message string
}

func (f *fakeCommitter) Commit(_ context.Context, path, message string) error {
	f.path, f.message = path, message
	return f.err
}

func TestProposeWritesFirstAttempt(t *testing.T) {
	store := NewStore(t.TempDir())
	committer := &fakeCommitter{}
	p := NewProposer(committer, store)
	p.now = func() time.Time { return fixedNow }

	require.NoError(t, p.Propose(context.Background(), "main.go", "tweak banner"))
	assert.Equal(t, "main.go", committer.path)
	assert.True(t, p.Pending())

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Attempt)
	assert.Equal(t, fixedNow.UnixMilli(), s.TimestampMillis)
}

func TestProposeCommitFailureLeavesNoSentinel(t *testing.T) {
	store := NewStore(t.TempDir())
	p := NewProposer(&fakeCommitter{err: errors.New("nothing to commit")}, store)

	err := p.Propose(context.Background(), "main.go", "tweak")
	require.Error(t, err)
	assert.False(t, p.Pending())
}
