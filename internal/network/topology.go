package network

import "fmt"

// Topology names how the mesh wires its neurons at start-up.
type Topology string

const (
	TopologyFull Topology = "full"
	TopologyRing Topology = "ring"
	TopologyNone Topology = "none"
)

// ParseTopology accepts the topology names used in configuration files.
func ParseTopology(name string) (Topology, error) {
	switch Topology(name) {
	case "", TopologyFull:
		return TopologyFull, nil
	case TopologyRing:
		return TopologyRing, nil
	case TopologyNone:
		return TopologyNone, nil
	default:
		return "", fmt.Errorf("unsupported topology: %s", name)
	}
}

// neighbours returns the indices node i connects to among n nodes.
func (t Topology) neighbours(i, n int) []int {
	switch t {
	case TopologyFull:
		out := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				out = append(out, j)
			}
		}
		return out
	case TopologyRing:
		if n < 2 {
			return nil
		}
		prev, next := (i+n-1)%n, (i+1)%n
		if prev == next {
			return []int{next}
		}
		return []int{prev, next}
	default:
		return nil
	}
}
