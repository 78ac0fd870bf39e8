package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"neurax/internal/model"
	"neurax/internal/network"
	"neurax/internal/neuron"
)

const runIndexFile = "run_index.json"

const (
	configFile = "config.json"
	roundsFile = "rounds.json"
	stepsFile  = "steps.json"
	seriesFile = "steps.csv"
	edgesFile  = "edges.json"
	statesFile = "states.json"
)

var artifactFiles = []string{configFile, roundsFile, stepsFile, seriesFile, edgesFile, statesFile}

type RunConfig struct {
	RunID         string        `json:"run_id"`
	Nodes         int           `json:"nodes"`
	Steps         int           `json:"steps"`
	Size          int           `json:"size"`
	TimeSteps     int           `json:"time_steps"`
	Intensity     float64       `json:"intensity"`
	Seed          int64         `json:"seed"`
	Topology      string        `json:"topology"`
	InitialWeight float64       `json:"initial_weight"`
	Workers       int           `json:"workers"`
	Params        neuron.Params `json:"params"`
	Bus           string        `json:"bus"`
	Store         string        `json:"store"`
}

type RunArtifacts struct {
	Config RunConfig              `json:"config"`
	Rounds []network.RoundSummary `json:"rounds"`
	Steps  []model.StepRecord     `json:"steps"`
	Edges  []model.EdgeRecord     `json:"edges"`
	States []neuron.State         `json:"states"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Nodes          int     `json:"nodes"`
	Steps          int     `json:"steps"`
	Topology       string  `json:"topology"`
	Seed           int64   `json:"seed"`
	Status         string  `json:"status"`
	MeanActivation float64 `json:"mean_activation"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, roundsFile), artifacts.Rounds); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, stepsFile), artifacts.Steps); err != nil {
		return "", err
	}
	if err := WriteStepSeries(runDir, artifacts.Steps); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, edgesFile), artifacts.Edges); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, statesFile), artifacts.States); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir. config.json is
// required; the remaining artifacts are copied when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(filepath.Join(src, configFile)); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range artifactFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadSteps(baseDir, runID string) ([]model.StepRecord, bool, error) {
	var steps []model.StepRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, stepsFile), &steps)
	return steps, ok, err
}

func ReadRounds(baseDir, runID string) ([]network.RoundSummary, bool, error) {
	var rounds []network.RoundSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, roundsFile), &rounds)
	return rounds, ok, err
}

func ReadEdges(baseDir, runID string) ([]model.EdgeRecord, bool, error) {
	var edges []model.EdgeRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, edgesFile), &edges)
	return edges, ok, err
}

var seriesHeader = []string{
	"round", "node_id", "iteration", "activation", "creativity", "decision",
	"network_consensus", "p_effective", "mean_curvature", "total_energy", "spatial_entropy",
}

// WriteStepSeries writes one CSV row per step record.
func WriteStepSeries(runDir string, steps []model.StepRecord) error {
	path := filepath.Join(runDir, seriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, s := range steps {
		if err := writer.Write([]string{
			strconv.Itoa(s.Round),
			s.NodeID,
			strconv.Itoa(s.Iteration),
			formatFloat(s.Activation),
			formatFloat(s.Creativity),
			formatFloat(s.Decision),
			formatFloat(s.NetworkConsensus),
			formatFloat(s.PEffective),
			formatFloat(s.Metrics.MeanCurvature),
			formatFloat(s.Metrics.TotalEnergy),
			formatFloat(s.Metrics.SpatialEntropy),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadActivationSeries returns the activation column of steps.csv grouped
// by node id in row order.
func ReadActivationSeries(baseDir, runID string) (map[string][]float64, bool, error) {
	path := filepath.Join(baseDir, runID, seriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string][]float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 4 {
		return nil, false, fmt.Errorf("step series header must have at least 4 columns")
	}

	series := make(map[string][]float64)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, false, err
		}
		series[record[1]] = append(series[record[1]], value)
	}
	return series, true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
