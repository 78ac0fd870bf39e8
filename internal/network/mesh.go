// Package network runs a mesh of neurons that exchange knowledge packages
// in synchronous rounds.
package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"neurax/internal/exchange"
	"neurax/internal/field"
	"neurax/internal/model"
	"neurax/internal/neuron"
	"neurax/internal/storage"
)

// Config configures a mesh run.
type Config struct {
	Nodes         int
	Size          int
	TimeSteps     int
	Params        neuron.Params
	Intensity     float64
	Seed          int64
	Topology      Topology
	InitialWeight float64
	Workers       int

	// Bus carries knowledge packages between nodes. A MemoryBus owned by
	// the mesh is used when nil.
	Bus exchange.Bus
	// Store receives run, step and edge records when set.
	Store storage.Store
	// StateDir receives one saved state per node at the end of a run.
	StateDir string
	RunID    string

	Logger  *log.Logger
	Verbose bool
	Now     func() time.Time
}

// RoundSummary aggregates one round over all nodes.
type RoundSummary struct {
	Round            int     `json:"round"`
	MeanActivation   float64 `json:"mean_activation"`
	MeanPEffective   float64 `json:"mean_p_effective"`
	MeanConsensus    float64 `json:"mean_network_consensus"`
	PackagesReceived int     `json:"packages_received"`
}

// Summary is the outcome of Run.
type Summary struct {
	Run    model.RunRecord    `json:"run"`
	Rounds []RoundSummary     `json:"rounds"`
	States []neuron.State     `json:"states"`
	Edges  []model.EdgeRecord `json:"edges"`
	Steps  []model.StepRecord `json:"-"`
}

// Mesh owns a set of neurons and drives them round by round.
type Mesh struct {
	cfg     Config
	nodes   []*neuron.Neuron
	bus     exchange.Bus
	ownsBus bool
	round   int

	logger *log.Logger
}

// New builds the neurons and wires them according to cfg.Topology.
func New(cfg Config) (*Mesh, error) {
	if cfg.Nodes < 1 {
		return nil, fmt.Errorf("mesh needs at least one node, got %d", cfg.Nodes)
	}
	if cfg.Topology == "" {
		cfg.Topology = TopologyFull
	}
	if _, err := ParseTopology(string(cfg.Topology)); err != nil {
		return nil, err
	}
	if cfg.InitialWeight == 0 {
		cfg.InitialWeight = neuron.DefaultInitialWeight
	}
	if cfg.Intensity == 0 {
		cfg.Intensity = neuron.DefaultIntensity
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	m := &Mesh{cfg: cfg, bus: cfg.Bus, logger: cfg.Logger}
	if m.bus == nil {
		m.bus = exchange.NewMemoryBus()
		m.ownsBus = true
	}

	for i := 0; i < cfg.Nodes; i++ {
		n, err := neuron.New(neuron.Config{
			Size:      cfg.Size,
			TimeSteps: cfg.TimeSteps,
			Params:    cfg.Params,
			RNG:       field.NewRNG(cfg.Seed + int64(i)),
			Logger:    cfg.Logger,
			Verbose:   cfg.Verbose,
			Now:       cfg.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("create node %d: %w", i, err)
		}
		m.nodes = append(m.nodes, n)
	}
	for i, n := range m.nodes {
		for _, j := range cfg.Topology.neighbours(i, len(m.nodes)) {
			n.Connect(m.nodes[j].ID(), cfg.InitialWeight)
		}
	}
	m.logger.Printf("[INFO] Mesh %s created with %d nodes (%s topology)", cfg.RunID, cfg.Nodes, cfg.Topology)
	return m, nil
}

func (m *Mesh) RunID() string { return m.cfg.RunID }

// Nodes returns the neurons in creation order.
func (m *Mesh) Nodes() []*neuron.Neuron { return slices.Clone(m.nodes) }

// Close releases the bus when the mesh created it.
func (m *Mesh) Close() error {
	if m.ownsBus {
		return m.bus.Close()
	}
	return nil
}

// Run executes steps rounds. Cancellation is checked between rounds; the
// summary of the completed rounds is returned together with ctx's error.
func (m *Mesh) Run(ctx context.Context, steps int) (Summary, error) {
	if steps < 1 {
		return Summary{}, fmt.Errorf("steps must be positive, got %d", steps)
	}
	run := m.runRecord(steps)
	if err := m.saveRun(ctx, run); err != nil {
		return Summary{}, err
	}
	m.logger.Printf("[INFO] Mesh %s starting %d rounds", run.ID, steps)

	summary := Summary{Run: run}
	var runErr error
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		round, records, err := m.Round(ctx)
		if err != nil {
			runErr = err
			break
		}
		summary.Rounds = append(summary.Rounds, round)
		summary.Steps = append(summary.Steps, records...)
		m.logger.Printf("[INFO] Mesh %s round %d/%d mean activation %.6f", run.ID, round.Round+1, steps, round.MeanActivation)
	}

	summary.States = m.States()
	summary.Edges = m.Edges()
	summary.Run = m.finishRun(run, summary, runErr)

	// Records are flushed with a fresh context so a cancelled run is still
	// persisted.
	flushCtx := context.WithoutCancel(ctx)
	if err := m.saveEdges(flushCtx, summary.Edges); err != nil {
		return summary, errors.Join(runErr, err)
	}
	if err := m.saveRun(flushCtx, summary.Run); err != nil {
		return summary, errors.Join(runErr, err)
	}
	if err := m.saveStates(); err != nil {
		return summary, errors.Join(runErr, err)
	}
	if runErr != nil {
		m.logger.Printf("[WARN] Mesh %s stopped after %d rounds: %v", run.ID, len(summary.Rounds), runErr)
	} else {
		m.logger.Printf("[INFO] Mesh %s completed %d rounds", run.ID, len(summary.Rounds))
	}
	return summary, runErr
}

// Round shares every node's knowledge, snapshots the bus and then steps all
// nodes in parallel against that snapshot.
func (m *Mesh) Round(ctx context.Context) (RoundSummary, []model.StepRecord, error) {
	for _, n := range m.nodes {
		if err := m.bus.Publish(ctx, n.ShareKnowledge()); err != nil {
			return RoundSummary{}, nil, fmt.Errorf("publish knowledge of %s: %w", n.ID(), err)
		}
	}
	latest, err := m.bus.Latest(ctx)
	if err != nil {
		return RoundSummary{}, nil, fmt.Errorf("read knowledge snapshot: %w", err)
	}

	round := m.round
	records := make([]model.StepRecord, len(m.nodes))
	received := make([]int, len(m.nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i, n := range m.nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			peers := make(map[string]neuron.PeerState)
			for _, id := range slices.Sorted(maps.Keys(n.Neighbors())) {
				pkg, ok := latest[id]
				if !ok {
					continue
				}
				if n.ReceiveKnowledge(pkg) {
					received[i]++
				}
				peers[id] = pkg.Peer()
			}
			result := n.Step(m.cfg.Intensity, peers)
			records[i] = m.stepRecord(round, result, len(n.Neighbors()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RoundSummary{}, nil, err
	}
	m.round++

	if m.cfg.Store != nil {
		if err := m.cfg.Store.AppendSteps(ctx, m.cfg.RunID, records); err != nil {
			return RoundSummary{}, nil, fmt.Errorf("persist round %d: %w", round, err)
		}
	}
	return summarizeRound(round, records, received), records, nil
}

// States returns a snapshot of every node.
func (m *Mesh) States() []neuron.State {
	states := make([]neuron.State, len(m.nodes))
	for i, n := range m.nodes {
		states[i] = n.State()
	}
	return states
}

// Edges lists every connection weight, ordered by source node then target.
func (m *Mesh) Edges() []model.EdgeRecord {
	var edges []model.EdgeRecord
	for _, n := range m.nodes {
		weights := n.Neighbors()
		for _, to := range slices.Sorted(maps.Keys(weights)) {
			edges = append(edges, model.EdgeRecord{
				VersionedRecord: model.CurrentVersion(),
				RunID:           m.cfg.RunID,
				From:            n.ID(),
				To:              to,
				Weight:          weights[to],
			})
		}
	}
	return edges
}

func (m *Mesh) stepRecord(round int, r neuron.StepResult, peers int) model.StepRecord {
	return model.StepRecord{
		VersionedRecord:  model.CurrentVersion(),
		RunID:            m.cfg.RunID,
		Round:            round,
		NodeID:           r.NodeID,
		Iteration:        r.Iteration,
		Timestamp:        r.Timestamp,
		Activation:       r.Activation,
		Creativity:       r.Creativity,
		Decision:         r.Decision,
		NetworkConsensus: r.NetworkConsensus,
		PEffective:       r.PEffective,
		ConnectedPeers:   peers,
		FieldDigest:      r.FieldDigest,
		Metrics:          r.Metrics,
	}
}

func summarizeRound(round int, records []model.StepRecord, received []int) RoundSummary {
	s := RoundSummary{Round: round}
	for i, r := range records {
		s.MeanActivation += r.Activation
		s.MeanPEffective += r.PEffective
		s.MeanConsensus += r.NetworkConsensus
		s.PackagesReceived += received[i]
	}
	n := float64(len(records))
	s.MeanActivation /= n
	s.MeanPEffective /= n
	s.MeanConsensus /= n
	return s
}

func (m *Mesh) runRecord(steps int) model.RunRecord {
	ids := make([]string, len(m.nodes))
	for i, n := range m.nodes {
		ids[i] = n.ID()
	}
	sim := m.nodes[0].Simulator()
	return model.RunRecord{
		VersionedRecord: model.CurrentVersion(),
		ID:              m.cfg.RunID,
		CreatedAt:       m.cfg.Now().UTC(),
		Status:          model.RunStatusRunning,
		Nodes:           len(m.nodes),
		Steps:           steps,
		Size:            sim.Size(),
		TimeSteps:       sim.TimeSteps(),
		Intensity:       m.cfg.Intensity,
		Seed:            m.cfg.Seed,
		Topology:        string(m.cfg.Topology),
		P0:              m.cfg.Params.P0,
		Beta1:           m.cfg.Params.Beta1,
		Beta2:           m.cfg.Params.Beta2,
		Beta3:           m.cfg.Params.Beta3,
		NodeIDs:         ids,
	}
}

func (m *Mesh) finishRun(run model.RunRecord, summary Summary, runErr error) model.RunRecord {
	run.FinishedAt = m.cfg.Now().UTC()
	switch {
	case runErr == nil:
		run.Status = model.RunStatusCompleted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		run.Status = model.RunStatusCancelled
	default:
		run.Status = model.RunStatusFailed
	}
	if len(summary.Rounds) > 0 {
		var total float64
		for _, r := range summary.Rounds {
			total += r.MeanActivation
		}
		run.MeanActivation = total / float64(len(summary.Rounds))
	}
	return run
}

func (m *Mesh) saveRun(ctx context.Context, run model.RunRecord) error {
	if m.cfg.Store == nil {
		return nil
	}
	if err := m.cfg.Store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	return nil
}

func (m *Mesh) saveEdges(ctx context.Context, edges []model.EdgeRecord) error {
	if m.cfg.Store == nil {
		return nil
	}
	if err := m.cfg.Store.SaveEdges(ctx, m.cfg.RunID, edges); err != nil {
		return fmt.Errorf("persist edges: %w", err)
	}
	return nil
}

func (m *Mesh) saveStates() error {
	if m.cfg.StateDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	for _, n := range m.nodes {
		if err := n.SaveState(filepath.Join(m.cfg.StateDir, n.ID()+".json")); err != nil {
			return fmt.Errorf("save state of %s: %w", n.ID(), err)
		}
	}
	return nil
}
