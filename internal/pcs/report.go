package pcs

import (
	"fmt"
	"strings"
	"time"
)

// Report is the executive summary of the current alerts.
type Report struct {
	GeneratedAt       time.Time `json:"generatedAt"`
	DocumentalBlocks  int       `json:"documentalBlocks"`
	AccessIssues      int       `json:"accessIssues"`
	TimeDiscrepancies int       `json:"timeDiscrepancies"`
	TotalIssues       int       `json:"totalIssues"`
	Recommendations   []string  `json:"recommendations"`
	Summary           string    `json:"summary"`
}

const (
	recDocuments = "Priorizar regularização de documentos pendentes"
	recAccess    = "Revisar processos de autorização portuária"
	recSchedule  = "Sincronizar cronogramas entre autoridades"
)

// BuildReport classifies alerts into documental, access and timing issues.
// An alert can count towards several groups when its type or reason mentions
// more than one.
func BuildReport(alerts []Alert, now time.Time) Report {
	r := Report{GeneratedAt: now, Recommendations: []string{}}

	for _, a := range alerts {
		desc := a.Reason
		if strings.Contains(a.Type, AlertBloqueioDocumental) ||
			strings.Contains(desc, "documentação") || strings.Contains(desc, "documento") {
			r.DocumentalBlocks++
		}
		if strings.Contains(a.Type, AlertAcessoPendente) || strings.Contains(a.Type, AlertAcessoNegado) ||
			strings.Contains(desc, "acesso") {
			r.AccessIssues++
		}
		if strings.Contains(a.Type, AlertDataMismatch) ||
			strings.Contains(desc, "horário") || strings.Contains(desc, "tempo") {
			r.TimeDiscrepancies++
		}
	}
	r.TotalIssues = r.DocumentalBlocks + r.AccessIssues + r.TimeDiscrepancies

	if r.DocumentalBlocks > 0 {
		r.Recommendations = append(r.Recommendations, recDocuments)
	}
	if r.AccessIssues > 0 {
		r.Recommendations = append(r.Recommendations, recAccess)
	}
	if r.TimeDiscrepancies > 0 {
		r.Recommendations = append(r.Recommendations, recSchedule)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "RESUMO EXECUTIVO - %s\n\n", now.Format("02/01/2006"))
	if r.TotalIssues == 0 {
		b.WriteString("Operações portuárias funcionando normalmente.\n")
		b.WriteString("Nenhum bloqueio crítico identificado.\n")
		b.WriteString("Manter monitoramento contínuo das operações.")
	} else {
		fmt.Fprintf(&b, "%d problemas críticos identificados:\n", r.TotalIssues)
		if r.DocumentalBlocks > 0 {
			fmt.Fprintf(&b, "%d bloqueios documentais ativos\n", r.DocumentalBlocks)
		}
		if r.AccessIssues > 0 {
			fmt.Fprintf(&b, "%d questões de acesso/autorização\n", r.AccessIssues)
		}
		if r.TimeDiscrepancies > 0 {
			fmt.Fprintf(&b, "%d divergências de cronograma\n", r.TimeDiscrepancies)
		}
		recs := r.Recommendations
		if len(recs) > 2 {
			recs = recs[:2]
		}
		fmt.Fprintf(&b, "Ações recomendadas: %s.", strings.Join(recs, "; "))
	}
	r.Summary = b.String()

	return r
}
