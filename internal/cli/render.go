package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1)
)

func field(label, value string) string {
	if value == "" {
		value = "-"
	}
	return labelStyle.Render(label) + " " + value
}

func renderState(state models.JobState) string {
	switch state {
	case models.StateCompleted:
		return okStyle.Render(string(state))
	case models.StateFailed:
		return errStyle.Render(string(state))
	}
	return string(state)
}

func renderJob(job models.QueryJob) string {
	lines := []string{
		titleStyle.Render("Consulta " + job.ID),
		field("Estado", renderState(job.State)),
		field("Mensaje", job.Message),
	}
	if job.Error != "" {
		lines = append(lines, field("Error", errStyle.Render(job.Error)))
	}
	if job.Result != nil {
		lines = append(lines, "", renderRecord(*job.Result))
	}
	lines = append(lines, renderFiles(job.Artifacts, job.Diagnostics)...)
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderRecord(r models.ResultRecord) string {
	b := r.BasicInfo
	lines := []string{
		field("Documento", strings.TrimSpace(b.DocumentType+" "+b.DocumentNumber)),
		field("Nombres", b.Names),
		field("Apellidos", b.Surnames),
		field("Departamento", b.Department),
		field("Municipio", b.Municipality),
	}

	if len(r.Affiliations) == 0 {
		lines = append(lines, field("Afiliación", "sin registros"))
	}
	for i, a := range r.Affiliations {
		lines = append(lines,
			"",
			titleStyle.Render(fmt.Sprintf("Afiliación %d", i+1)),
			field("Estado", a.Status),
			field("Entidad", a.Entity),
			field("Régimen", a.Regime),
			field("Desde", a.StartDate),
			field("Hasta", a.EndDate),
			field("Tipo", a.AffiliateType),
		)
	}

	if r.Metadata.QueryDate != "" {
		lines = append(lines, "", field("Consultado", r.Metadata.QueryDate))
	}
	if r.Error != "" {
		lines = append(lines, field("Nota", r.Error))
	}
	return strings.Join(lines, "\n")
}

func renderFiles(files map[string]string, diagnostics []string) []string {
	if len(files) == 0 && len(diagnostics) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(files))
	for k := range files {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	lines := []string{""}
	for _, k := range kinds {
		lines = append(lines, field(k, files[k]))
	}
	for _, d := range diagnostics {
		lines = append(lines, field("diagnóstico", d))
	}
	return lines
}

func renderBatch(batch models.BatchJob) string {
	lines := []string{
		titleStyle.Render("Lote " + batch.ID),
		field("Estado", string(batch.State)),
		field("Filas", fmt.Sprintf("%d/%d", batch.Processed, batch.Total)),
		field("Exitosas", okStyle.Render(fmt.Sprint(batch.Succeeded))),
		field("Fallidas", errStyle.Render(fmt.Sprint(batch.Failed))),
	}
	if batch.Artifact != "" {
		lines = append(lines, field("Resumen", batch.Artifact))
	}
	lines = append(lines, "")

	for _, o := range batch.Outcomes {
		detail := o.Message
		if o.Error != "" {
			detail = o.Error
		}
		lines = append(lines, fmt.Sprintf("%3d  %-2s %-12s %s  %s",
			o.Line, o.DocumentType, o.DocumentNumber, renderState(o.State), detail))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
