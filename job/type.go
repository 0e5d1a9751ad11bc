package job

import "fmt"

// Type identifies the kind of work a job performs. The engine supports
// a fixed enumeration; admission rejects anything else, and Register
// refuses to bind a handler to an unknown type.
type Type string

const (
	TypeBulkClassification Type = "bulk-classification"
	TypeBulkFeeCalculation Type = "bulk-fee-calculation"
	TypeDataExport         Type = "data-export"
	TypeDataImport         Type = "data-import"
	TypeOptimization       Type = "optimization"
	TypeScenarioAnalysis   Type = "scenario-analysis"
)

// Types returns every supported job type, in a stable order.
func Types() []Type {
	return []Type{
		TypeBulkClassification,
		TypeBulkFeeCalculation,
		TypeDataExport,
		TypeDataImport,
		TypeOptimization,
		TypeScenarioAnalysis,
	}
}

// Valid reports whether t is one of the supported job types.
func (t Type) Valid() bool {
	switch t {
	case TypeBulkClassification, TypeBulkFeeCalculation, TypeDataExport,
		TypeDataImport, TypeOptimization, TypeScenarioAnalysis:
		return true
	}
	return false
}

// ParseType converts a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("job: unknown type %q", s)
	}
	return t, nil
}
