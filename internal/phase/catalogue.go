package phase

import (
	"fmt"

	"opsline/internal/apperr"
	"opsline/internal/domain"
)

// FullProgress is the catalogue weight total.
const FullProgress = 100

// Status thresholds on progress.
const (
	AwardedAt   = 80
	LegalizedAt = 100
)

// DefaultCatalogue mirrors the rows seeded by the initial migration.
var DefaultCatalogue = []domain.PhaseDefinition{
	{Code: "ficha_tecnica", Name: "Ficha técnica", Weight: 10, Position: 1},
	{Code: "estudio_mercado", Name: "Estudio de mercado", Weight: 15, Position: 2},
	{Code: "cdp_vigencia", Name: "CDP / vigencia", Weight: 10, Position: 3},
	{Code: "estudio_previo", Name: "Estudio previo", Weight: 20, Position: 4},
	{Code: "indicadores_fin", Name: "Indicadores financieros", Weight: 10, Position: 5},
	{Code: "radicacion_contratos", Name: "Radicación de contratos", Weight: 15, Position: 6},
	{Code: "proceso_adjudicado", Name: "Proceso adjudicado", Weight: 10, Position: 7},
	{Code: "legalizacion_contrato", Name: "Legalización del contrato", Weight: 10, Position: 8},
}

// ValidateCatalogue requires unique codes, positive weights and a weight
// total of exactly 100.
func ValidateCatalogue(defs []domain.PhaseDefinition) error {
	if len(defs) == 0 {
		return apperr.New(apperr.CodeInvalidCatalogue, "phase catalogue is empty")
	}
	seen := map[string]bool{}
	sum := 0
	for _, d := range defs {
		if d.Code == "" {
			return apperr.New(apperr.CodeInvalidCatalogue, "phase catalogue has an empty code")
		}
		if seen[d.Code] {
			return apperr.WithMetadata(apperr.CodeInvalidCatalogue, fmt.Sprintf("duplicate phase %s", d.Code), map[string]string{"code": d.Code})
		}
		seen[d.Code] = true
		if d.Weight <= 0 {
			return apperr.WithMetadata(apperr.CodeInvalidCatalogue, fmt.Sprintf("phase %s has non-positive weight %d", d.Code, d.Weight), map[string]string{"code": d.Code})
		}
		sum += d.Weight
	}
	if sum != FullProgress {
		return apperr.WithMetadata(apperr.CodeInvalidCatalogue, fmt.Sprintf("phase weights sum to %d, want %d", sum, FullProgress), map[string]string{
			"sum": fmt.Sprint(sum),
		})
	}
	return nil
}

// Progress sums the weights of the completed phases. Tracking rows for codes
// outside the catalogue contribute nothing.
func Progress(defs []domain.PhaseDefinition, tracking []domain.PhaseTracking) int {
	done := make(map[string]bool, len(tracking))
	for _, t := range tracking {
		if t.IsCompleted {
			done[t.PhaseCode] = true
		}
	}
	total := 0
	for _, d := range defs {
		if done[d.Code] {
			total += d.Weight
		}
	}
	return total
}

// DeriveStatus maps progress onto the process lifecycle.
func DeriveStatus(progress int) domain.ProcessStatus {
	switch {
	case progress >= LegalizedAt:
		return domain.ProcessLegalized
	case progress >= AwardedAt:
		return domain.ProcessAwarded
	default:
		return domain.ProcessInProgress
	}
}
