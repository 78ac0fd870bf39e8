package neuron

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"neurax/internal/field"
)

const stateVersion = 1

// FieldSuffix is appended to a state path to name its field container.
const FieldSuffix = ".field"

// SavedState is the JSON metadata written next to the field container.
type SavedState struct {
	Version           int                `json:"version"`
	NodeID            string             `json:"node_id"`
	Params            Params             `json:"params"`
	Iterations        int                `json:"iterations"`
	SavedAt           time.Time          `json:"saved_at"`
	History           History            `json:"history"`
	Neighbors         map[string]float64 `json:"neighbors"`
	SharedKnowledge   []KnowledgePackage `json:"shared_knowledge"`
	ReceivedKnowledge []KnowledgePackage `json:"received_knowledge"`
	FieldFile         string             `json:"field_file"`
}

// SaveState writes the metadata to path and the field to path+FieldSuffix.
func (n *Neuron) SaveState(path string) error {
	fieldPath := path + FieldSuffix
	if err := n.sim.Save(fieldPath); err != nil {
		n.logger.Printf("[ERROR] Neuron %s failed to save field: %v", n.id, err)
		return err
	}

	saved := SavedState{
		Version:           stateVersion,
		NodeID:            n.id,
		Params:            n.params,
		Iterations:        n.iterations,
		SavedAt:           n.now().UTC(),
		History:           n.history.clone(),
		Neighbors:         n.Neighbors(),
		SharedKnowledge:   n.SharedKnowledge(),
		ReceivedKnowledge: n.ReceivedKnowledge(),
		FieldFile:         filepath.Base(fieldPath),
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		n.logger.Printf("[ERROR] Neuron %s failed to encode state: %v", n.id, err)
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		n.logger.Printf("[ERROR] Neuron %s failed to write state: %v", n.id, err)
		return fmt.Errorf("write state %s: %w", path, err)
	}
	n.logger.Printf("[INFO] Neuron %s saved state to %s", n.id, path)
	return nil
}

// ReadState decodes the metadata file at path without touching any neuron.
func ReadState(path string) (SavedState, error) {
	var saved SavedState
	data, err := os.ReadFile(path)
	if err != nil {
		return saved, fmt.Errorf("read state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		return saved, fmt.Errorf("decode state %s: %w", path, err)
	}
	if saved.Version != stateVersion {
		return saved, fmt.Errorf("state %s: unsupported version %d", path, saved.Version)
	}
	if saved.NodeID == "" {
		return saved, errors.New("state has no node id")
	}
	return saved, nil
}

// FieldPath resolves the field container referenced by a state saved at
// path.
func (s SavedState) FieldPath(path string) string {
	name := s.FieldFile
	if name == "" {
		name = filepath.Base(path) + FieldSuffix
	}
	return filepath.Join(filepath.Dir(path), filepath.Base(name))
}

// LoadState restores a neuron saved with SaveState. The saved node id
// replaces the current one. On failure the neuron is left unchanged.
func (n *Neuron) LoadState(path string) error {
	saved, err := ReadState(path)
	if err != nil {
		n.logger.Printf("[ERROR] Neuron %s failed to load state: %v", n.id, err)
		return err
	}
	sim, err := field.LoadFile(saved.FieldPath(path), n.rng)
	if err != nil {
		n.logger.Printf("[ERROR] Neuron %s failed to load field: %v", n.id, err)
		return err
	}

	neighbors := make(map[string]float64, len(saved.Neighbors))
	for id, w := range saved.Neighbors {
		if id == "" || id == saved.NodeID || !isFinite(w) {
			continue
		}
		neighbors[id] = clamp(w, minWeight, maxWeight)
	}

	previous := n.id
	n.id = saved.NodeID
	n.params = saved.Params
	n.iterations = saved.Iterations
	n.history = saved.History.clone()
	n.neighbors = neighbors
	n.shared = saved.SharedKnowledge
	n.received = saved.ReceivedKnowledge
	n.sim = sim
	if previous != n.id {
		n.debugf("neuron %s adopted saved id %s", previous, n.id)
	}
	n.logger.Printf("[INFO] Neuron %s loaded state from %s (iteration %d)", n.id, path, n.iterations)
	return nil
}
