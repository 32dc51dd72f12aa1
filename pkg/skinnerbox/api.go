// Package skinnerbox is the embedding surface: load a paradigm, run a
// session against a store, and read back sessions, trials, reports, and
// exports.
package skinnerbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"skinnerbox/internal/experiment"
	"skinnerbox/internal/interrupt"
	"skinnerbox/internal/metrics"
	"skinnerbox/internal/model"
	"skinnerbox/internal/paradigm"
	"skinnerbox/internal/stats"
	"skinnerbox/internal/storage"
)

const (
	defaultDBPath     = "skinnerbox.db"
	defaultExportsDir = "exports"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
}

type Client struct {
	store       storage.Store
	exportsDir  string
	initialized bool
}

type RunRequest struct {
	ParadigmPath string
	MetricsAddr  string
	Logger       *log.Logger
	Scope        *interrupt.Scope
}

type RunSummary struct {
	SessionID   string
	SubjectID   string
	NTrials     int
	Completed   int
	Interrupted bool
	TypeCounts  map[string]int
}

type SessionsRequest struct {
	Limit int
}

type TrialsRequest struct {
	SessionID string
	Latest    bool
	Limit     int
}

type ReportRequest struct {
	SessionID string
	Latest    bool
}

type ExportRequest struct {
	SessionID string
	Latest    bool
	All       bool
	OutDir    string
}

type ExportSummary struct {
	Directory string
	Sessions  []string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, exportsDir: exportsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run loads the paradigm, assembles the session, and drives it to
// completion or interruption. The resulting trials are persisted before
// Run returns.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.ParadigmPath == "" {
		return RunSummary{}, errors.New("paradigm path is required")
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	p, err := paradigm.Load(req.ParadigmPath)
	if err != nil {
		return RunSummary{}, err
	}
	cfg, components, err := p.Build(req.Logger)
	if err != nil {
		return RunSummary{}, err
	}
	if req.MetricsAddr != "" {
		components = append(components, metrics.NewModule(req.MetricsAddr))
	}

	exp, err := experiment.New(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Scope != nil {
		exp.UseScope(req.Scope)
	}

	recorder := storage.NewSessionRecorder(c.store)
	session, err := exp.Run(ctx, recorder, components...)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return RunSummary{}, err
	}

	trials, _, terr := c.store.GetTrials(ctx, session.ID)
	if terr != nil {
		return RunSummary{}, terr
	}
	counts := make(map[string]int)
	for _, trial := range trials {
		counts[trial.TypeName]++
	}
	return RunSummary{
		SessionID:   session.ID,
		SubjectID:   session.SubjectID,
		NTrials:     session.NTrials,
		Completed:   session.Completed,
		Interrupted: session.Interrupted,
		TypeCounts:  counts,
	}, nil
}

func (c *Client) Sessions(ctx context.Context, req SessionsRequest) ([]model.Session, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	sessions, err := c.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(sessions) > req.Limit {
		sessions = sessions[len(sessions)-req.Limit:]
	}
	return sessions, nil
}

func (c *Client) Trials(ctx context.Context, req TrialsRequest) ([]model.Trial, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	sessionID, err := c.resolveSession(ctx, req.SessionID, req.Latest)
	if err != nil {
		return nil, err
	}
	trials, ok, err := c.store.GetTrials(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no trials recorded for session: %s", sessionID)
	}
	if req.Limit > 0 && len(trials) > req.Limit {
		trials = trials[:req.Limit]
	}
	return trials, nil
}

func (c *Client) Report(ctx context.Context, req ReportRequest) (stats.SessionSummary, error) {
	sessionID, err := c.resolveSession(ctx, req.SessionID, req.Latest)
	if err != nil {
		return stats.SessionSummary{}, err
	}
	session, ok, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return stats.SessionSummary{}, err
	}
	if !ok {
		return stats.SessionSummary{}, fmt.Errorf("session not found: %s", sessionID)
	}
	trials, _, err := c.store.GetTrials(ctx, sessionID)
	if err != nil {
		return stats.SessionSummary{}, err
	}
	return stats.Summarize(session, trials), nil
}

// Export writes one JSON document per session, fanned out across
// goroutines, each holding the session header, its trials, and the
// derived summary.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if err := c.Init(ctx); err != nil {
		return ExportSummary{}, err
	}

	var ids []string
	if req.All {
		sessions, err := c.store.ListSessions(ctx)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(sessions) == 0 {
			return ExportSummary{}, errors.New("no sessions available to export")
		}
		for _, session := range sessions {
			ids = append(ids, session.ID)
		}
	} else {
		id, err := c.resolveSession(ctx, req.SessionID, req.Latest)
		if err != nil {
			return ExportSummary{}, err
		}
		ids = append(ids, id)
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return ExportSummary{}, err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, id := range ids {
		group.Go(func() error {
			return c.exportSession(groupCtx, id, req.OutDir)
		})
	}
	if err := group.Wait(); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{Directory: filepath.Clean(req.OutDir), Sessions: ids}, nil
}

type sessionExport struct {
	Session model.Session        `json:"session"`
	Trials  []model.Trial        `json:"trials"`
	Summary stats.SessionSummary `json:"summary"`
}

func (c *Client) exportSession(ctx context.Context, sessionID, outDir string) error {
	session, ok, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	trials, _, err := c.store.GetTrials(ctx, sessionID)
	if err != nil {
		return err
	}
	doc := sessionExport{
		Session: session,
		Trials:  trials,
		Summary: stats.Summarize(session, trials),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, sessionID+".json"), payload, 0o644)
}

func (c *Client) resolveSession(ctx context.Context, sessionID string, latest bool) (string, error) {
	if sessionID != "" && latest {
		return "", errors.New("use either session id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if sessionID != "" {
		return sessionID, nil
	}
	if !latest {
		return "", errors.New("session id or latest is required")
	}
	sessions, err := c.store.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", errors.New("no sessions available")
	}
	return sessions[len(sessions)-1].ID, nil
}
