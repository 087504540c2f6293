package analytics

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"opsline/internal/domain"
)

// DiffSnapshots renders a unified diff of two snapshots as indented JSON.
// Equal snapshots yield an empty string.
func DiffSnapshots(fromName string, from domain.ReportSnapshot, toName string, to domain.ReportSnapshot) (string, error) {
	a, err := json.MarshalIndent(from, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", fromName, err)
	}
	b, err := json.MarshalIndent(to, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", toName, err)
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a) + "\n"),
		B:        difflib.SplitLines(string(b) + "\n"),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
