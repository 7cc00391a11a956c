package store

import "encoding/json"

// Report captures the observable state of a store for tooling.
type Report struct {
	Paths []PathReport `json:"paths"`
}

// PathReport details one path: its value and how many owners keep it alive.
type PathReport struct {
	Path     string `json:"path"`
	RefCount int    `json:"ref_count"`
	Value    any    `json:"value,omitempty"`
}

// Inspect returns a report of every stored path, sorted by path.
func (s *Store) Inspect() Report {
	values := s.Snapshot()
	report := Report{Paths: make([]PathReport, 0, len(values))}
	for _, path := range s.Keys() {
		value, ok := values[path]
		if !ok {
			continue
		}
		report.Paths = append(report.Paths, PathReport{
			Path:     path,
			RefCount: s.RefCount(path),
			Value:    value,
		})
	}
	return report
}

// ToJSON serialises the report for logging or devtools transport.
func (r Report) ToJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(alias(r))
}

// ReportFromJSON deserialises a payload produced by ToJSON.
func ReportFromJSON(payload []byte) (Report, error) {
	type alias Report
	var report alias
	if err := json.Unmarshal(payload, &report); err != nil {
		return Report{}, err
	}
	return Report(report), nil
}
