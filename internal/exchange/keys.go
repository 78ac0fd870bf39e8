package exchange

import "fmt"

// Redis key pattern helpers
//
// Keys and channels are namespaced by instance name so several meshes can
// share a Redis server.
//
// Key pattern: neurax:{instance_name}:knowledge:{node_id}
// Channel pattern: neurax:{instance_name}:knowledge_events

// KnowledgeKey returns the key holding the newest package of a node.
func KnowledgeKey(instanceName, nodeID string) string {
	return fmt.Sprintf("neurax:%s:knowledge:%s", instanceName, nodeID)
}

// NodesKey returns the set of node ids that have published.
func NodesKey(instanceName string) string {
	return fmt.Sprintf("neurax:%s:nodes", instanceName)
}

// KnowledgeEventsChannel returns the Pub/Sub channel for knowledge packages.
func KnowledgeEventsChannel(instanceName string) string {
	return fmt.Sprintf("neurax:%s:knowledge_events", instanceName)
}
