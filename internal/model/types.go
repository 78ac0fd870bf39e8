package model

import (
	"time"

	"neurax/internal/field"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one mesh run and the configuration it used.
type RunRecord struct {
	VersionedRecord
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Status     string    `json:"status"`

	Nodes     int     `json:"nodes"`
	Steps     int     `json:"steps"`
	Size      int     `json:"size"`
	TimeSteps int     `json:"time_steps"`
	Intensity float64 `json:"intensity"`
	Seed      int64   `json:"seed"`
	Topology  string  `json:"topology"`
	P0        float64 `json:"p_0"`
	Beta1     float64 `json:"beta_1"`
	Beta2     float64 `json:"beta_2"`
	Beta3     float64 `json:"beta_3"`

	NodeIDs        []string `json:"node_ids"`
	MeanActivation float64  `json:"mean_activation"`
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// StepRecord is the result of one neuron step inside a run.
type StepRecord struct {
	VersionedRecord
	RunID            string        `json:"run_id"`
	Round            int           `json:"round"`
	NodeID           string        `json:"node_id"`
	Iteration        int           `json:"iteration"`
	Timestamp        time.Time     `json:"timestamp"`
	Activation       float64       `json:"activation"`
	Creativity       float64       `json:"creativity"`
	Decision         float64       `json:"decision"`
	NetworkConsensus float64       `json:"network_consensus"`
	PEffective       float64       `json:"p_effective"`
	ConnectedPeers   int           `json:"connected_peers"`
	FieldDigest      string        `json:"field_digest"`
	Metrics          field.Metrics `json:"metrics"`
}

// EdgeRecord is a directed connection weight at the end of a run.
type EdgeRecord struct {
	VersionedRecord
	RunID  string  `json:"run_id"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// CurrentVersion returns the record version stamped on new data.
func CurrentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: 1, CodecVersion: 1}
}
