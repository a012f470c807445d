// Package sources registers every builtin table format with the table
// registry.
package sources

import (
	// Import all table sources to trigger init() registration
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources/arrow"
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources/avro"
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources/csv"
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources/jsonl"
	_ "github.com/knime/knime-dl4j-sub000/pkg/table/sources/sql"
)
