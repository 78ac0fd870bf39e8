package neurax

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"neurax/internal/exchange"
	"neurax/internal/model"
	"neurax/internal/network"
	"neurax/internal/neuron"
	"neurax/internal/stats"
	"neurax/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "neurax.db"
	statesDir         = "states"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string

	// Bus is shared by every run of the client. Each run gets its own
	// in-memory bus when nil.
	Bus     exchange.Bus
	BusKind string

	Logger  *log.Logger
	Verbose bool
}

type Client struct {
	store     storage.Store
	storeKind string
	bus       exchange.Bus
	busKind   string

	runsDir    string
	exportsDir string
	logger     *log.Logger
	verbose    bool

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	RunID         string
	Nodes         int
	Steps         int
	Size          int
	TimeSteps     int
	Intensity     float64
	Seed          int64
	Topology      string
	InitialWeight float64
	Workers       int
	Params        *Params
	SaveStates    bool
	// StatesDir saves final states to StatesDir/<run id>. It implies
	// SaveStates.
	StatesDir string
}

type RunSummary struct {
	RunID          string
	ArtifactsDir   string
	StatesDir      string
	Status         string
	Rounds         []network.RoundSummary
	MeanActivation float64
	FinalStates    []State
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Nodes          int
	Steps          int
	Topology       string
	Seed           int64
	Status         string
	MeanActivation float64
}

type StepsRequest struct {
	RunID  string
	Latest bool
	NodeID string
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
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
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	busKind := opts.BusKind
	if busKind == "" {
		busKind = "memory"
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		storeKind:  storeKind,
		bus:        opts.Bus,
		busKind:    busKind,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		logger:     logger,
		verbose:    opts.Verbose,
	}, nil
}

// Close releases the store. A bus passed in Options stays open.
func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the store. Other methods call it on demand.
func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init %s store: %w", c.storeKind, err)
	}
	c.initialized = true
	return nil
}

// Run executes a mesh run, persists its records and writes its artifacts.
// A cancelled run still writes the rounds it completed.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.Nodes <= 0 {
		req.Nodes = 3
	}
	if req.Steps <= 0 {
		req.Steps = 10
	}
	if req.Size == 0 {
		req.Size = neuron.DefaultSize
	}
	if req.TimeSteps == 0 {
		req.TimeSteps = neuron.DefaultTimeSteps
	}
	if req.Intensity == 0 {
		req.Intensity = neuron.DefaultIntensity
	}
	if req.InitialWeight == 0 {
		req.InitialWeight = neuron.DefaultInitialWeight
	}
	params := neuron.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}
	topology, err := network.ParseTopology(req.Topology)
	if err != nil {
		return RunSummary{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	summary := RunSummary{RunID: req.RunID}
	cfg := network.Config{
		Nodes:         req.Nodes,
		Size:          req.Size,
		TimeSteps:     req.TimeSteps,
		Params:        params,
		Intensity:     req.Intensity,
		Seed:          req.Seed,
		Topology:      topology,
		InitialWeight: req.InitialWeight,
		Workers:       req.Workers,
		Bus:           c.bus,
		Store:         c.store,
		RunID:         req.RunID,
		Logger:        c.logger,
		Verbose:       c.verbose,
	}
	switch {
	case req.StatesDir != "":
		summary.StatesDir = filepath.Join(req.StatesDir, req.RunID)
	case req.SaveStates:
		summary.StatesDir = filepath.Join(c.runsDir, req.RunID, statesDir)
	}
	cfg.StateDir = summary.StatesDir

	mesh, err := network.New(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	defer mesh.Close()

	result, runErr := mesh.Run(ctx, req.Steps)
	if result.Run.ID == "" {
		return RunSummary{}, runErr
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         req.RunID,
			Nodes:         req.Nodes,
			Steps:         req.Steps,
			Size:          req.Size,
			TimeSteps:     req.TimeSteps,
			Intensity:     req.Intensity,
			Seed:          req.Seed,
			Topology:      string(topology),
			InitialWeight: req.InitialWeight,
			Workers:       req.Workers,
			Params:        params,
			Bus:           c.busKind,
			Store:         c.storeKind,
		},
		Rounds: result.Rounds,
		Steps:  result.Steps,
		Edges:  result.Edges,
		States: result.States,
	})
	if err != nil {
		return RunSummary{}, errors.Join(runErr, err)
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:          req.RunID,
		Nodes:          req.Nodes,
		Steps:          req.Steps,
		Topology:       string(topology),
		Seed:           req.Seed,
		Status:         result.Run.Status,
		MeanActivation: result.Run.MeanActivation,
		CreatedAtUTC:   result.Run.CreatedAt.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, errors.Join(runErr, err)
	}

	summary.ArtifactsDir = runDir
	summary.Status = result.Run.Status
	summary.Rounds = result.Rounds
	summary.MeanActivation = result.Run.MeanActivation
	summary.FinalStates = result.States
	return summary, runErr
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Nodes:          e.Nodes,
			Steps:          e.Steps,
			Topology:       e.Topology,
			Seed:           e.Seed,
			Status:         e.Status,
			MeanActivation: e.MeanActivation,
		})
	}
	return out, nil
}

// Steps returns the step records of a run from the store, falling back to
// the run's artifacts when the store does not know it.
func (c *Client) Steps(ctx context.Context, req StepsRequest) ([]model.StepRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	steps, ok, err := c.store.GetSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		steps, ok, err = stats.ReadSteps(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("steps not found for run id: %s", runID)
		}
	}

	if req.NodeID != "" {
		filtered := steps[:0:0]
		for _, s := range steps {
			if s.NodeID == req.NodeID {
				filtered = append(filtered, s)
			}
		}
		steps = filtered
	}
	if req.Limit > 0 && len(steps) > req.Limit {
		steps = steps[len(steps)-req.Limit:]
	}
	return steps, nil
}

// NodeSummaries aggregates the step records selected by req per node.
func (c *Client) NodeSummaries(ctx context.Context, req StepsRequest) ([]stats.NodeSummary, error) {
	steps, err := c.Steps(ctx, req)
	if err != nil {
		return nil, err
	}
	return stats.SummarizeNodes(steps), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if runID != "" {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
