/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

// GSIConfig holds the configuration for GSI key mappings
type GSIConfig struct {
	// IndexName is the actual GSI name in DynamoDB (e.g., "KindIndex")
	IndexName string
	// PartitionKeyName is the partition key attribute of the GSI
	PartitionKeyName string
	// SortKeyName is the sort key attribute of the GSI
	SortKeyName string
}

// KindIndex is the GSI every query runs against: partitioned by kind, sorted
// by encoded key, so unordered results come back in key order.
const KindIndex = "KindIndex"

// DefaultGSIConfigs holds the default GSI configurations
var DefaultGSIConfigs = map[string]GSIConfig{
	KindIndex: {
		IndexName:        KindIndex,
		PartitionKeyName: attrEntityType,
		SortKeyName:      attrPK,
	},
}
