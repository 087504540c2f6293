package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusCompleted  TaskStatus = "completed"
)

type Priority string

const (
	PriorityUnspecified Priority = "unspecified"
	PriorityLow         Priority = "low"
	PriorityMedium      Priority = "medium"
	PriorityHigh        Priority = "high"
)

type ProcessStatus string

const (
	ProcessInProgress ProcessStatus = "in_progress"
	ProcessAwarded    ProcessStatus = "awarded"
	ProcessLegalized  ProcessStatus = "legalized"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Label returns the display label used in exports.
func (r RiskLevel) Label() string {
	switch r {
	case RiskLow:
		return "Bajo"
	case RiskMedium:
		return "Medio"
	case RiskHigh:
		return "Alto"
	case RiskCritical:
		return "Crítico"
	}
	return string(r)
}

// Label returns the Spanish display label.
func (s TaskStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusInProgress:
		return "En progreso"
	case StatusReview:
		return "En revisión"
	case StatusCompleted:
		return "Completada"
	}
	return string(s)
}

func (s ProcessStatus) Label() string {
	switch s {
	case ProcessInProgress:
		return "En proceso"
	case ProcessAwarded:
		return "Adjudicado"
	case ProcessLegalized:
		return "Legalizado"
	}
	return string(s)
}

// Rank orders risk levels from low (0) to critical (3).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return 0
}

var statusAliases = map[string]TaskStatus{
	"pending":     StatusPending,
	"pendiente":   StatusPending,
	"todo":        StatusPending,
	"in_progress": StatusInProgress,
	"en_progreso": StatusInProgress,
	"en_proceso":  StatusInProgress,
	"review":      StatusReview,
	"revision":    StatusReview,
	"en_revision": StatusReview,
	"completed":   StatusCompleted,
	"completado":  StatusCompleted,
	"completada":  StatusCompleted,
	"done":        StatusCompleted,
}

var priorityAliases = map[string]Priority{
	"low":         PriorityLow,
	"baja":        PriorityLow,
	"medium":      PriorityMedium,
	"media":       PriorityMedium,
	"high":        PriorityHigh,
	"alta":        PriorityHigh,
	"unspecified": PriorityUnspecified,
	"sin_definir": PriorityUnspecified,
}

var processStatusAliases = map[string]ProcessStatus{
	"in_progress": ProcessInProgress,
	"en_progreso": ProcessInProgress,
	"en_proceso":  ProcessInProgress,
	"awarded":     ProcessAwarded,
	"adjudicado":  ProcessAwarded,
	"legalized":   ProcessLegalized,
	"legalizado":  ProcessLegalized,
}

var riskAliases = map[string]RiskLevel{
	"low":      RiskLow,
	"bajo":     RiskLow,
	"medium":   RiskMedium,
	"medio":    RiskMedium,
	"high":     RiskHigh,
	"alto":     RiskHigh,
	"critical": RiskCritical,
	"critico":  RiskCritical,
}

func ParseStatus(s string) (TaskStatus, error) {
	if v, ok := statusAliases[CanonicalKey(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// ParsePriority maps an empty label to PriorityUnspecified.
func ParsePriority(s string) (Priority, error) {
	if strings.TrimSpace(s) == "" {
		return PriorityUnspecified, nil
	}
	if v, ok := priorityAliases[CanonicalKey(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

func ParseProcessStatus(s string) (ProcessStatus, error) {
	if v, ok := processStatusAliases[CanonicalKey(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("invalid process status %q", s)
}

func ParseRiskLevel(s string) (RiskLevel, error) {
	if v, ok := riskAliases[CanonicalKey(s)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("invalid risk level %q", s)
}

// CanonicalKey folds a label to a lookup key: "Crítico", "CrÃ­tico" and "critico" all
// become "critico"; spaces and dashes become underscores.
func CanonicalKey(s string) string {
	s = strings.TrimSpace(repairMojibake(s))
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, folded)
}

// repairMojibake undoes UTF-8 text that was decoded as Windows-1252 once.
func repairMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	raw, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	return raw
}
