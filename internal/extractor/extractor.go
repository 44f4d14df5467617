// Package extractor turns the portal's result page into a ResultRecord.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/adresconsulta/eps-api/internal/models"
)

var (
	documentTypePattern   = field(`TIPO DE IDENTIFICACIÓN`)
	documentNumberPattern = field(`NÚMERO DE IDENTIFICACION`)
	namesPattern          = field(`NOMBRES`)
	surnamesPattern       = field(`APELLIDOS`)
	birthDatePattern      = field(`FECHA DE NACIMIENTO`)
	departmentPattern     = field(`DEPARTAMENTO`)
	municipalityPattern   = field(`MUNICIPIO`)

	affiliationPattern = regexp.MustCompile(`<tr class="DataGrid_(?:Item|AlternatingItem)" align="center">\s*` +
		strings.Repeat(`<td>([^<]+)</td>`, 6))

	printDatePattern = regexp.MustCompile(`Fecha de Impresión:.*?<span[^>]*>([^<]+)</span>`)
	stationPattern   = regexp.MustCompile(`Estación de origen:.*?<span[^>]*>([^<]+)</span>`)
)

func field(label string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(label) + `</td><td>([^<]+)</td>`)
}

// Extract parses the result page. It never fails: a page without the
// identification block yields Success=false, and an internal fault is
// reported through Error.
func Extract(html string) (record models.ResultRecord) {
	record = models.ResultRecord{Affiliations: []models.Affiliation{}}

	defer func() {
		if r := recover(); r != nil {
			record.Success = false
			record.Error = fmt.Sprint(r)
		}
	}()

	docType, okType := first(documentTypePattern, html)
	docNumber, okNumber := first(documentNumberPattern, html)
	if okType && okNumber {
		record.Success = true
		record.BasicInfo = models.BasicInfo{
			DocumentType:   docType,
			DocumentNumber: docNumber,
			Names:          firstOrEmpty(namesPattern, html),
			Surnames:       firstOrEmpty(surnamesPattern, html),
			BirthDate:      firstOrEmpty(birthDatePattern, html),
			Department:     firstOrEmpty(departmentPattern, html),
			Municipality:   firstOrEmpty(municipalityPattern, html),
		}
	}

	for _, m := range affiliationPattern.FindAllStringSubmatch(html, -1) {
		record.Affiliations = append(record.Affiliations, models.Affiliation{
			Status:        strings.TrimSpace(m[1]),
			Entity:        strings.TrimSpace(m[2]),
			Regime:        strings.TrimSpace(m[3]),
			StartDate:     strings.TrimSpace(m[4]),
			EndDate:       strings.TrimSpace(m[5]),
			AffiliateType: strings.TrimSpace(m[6]),
		})
	}

	record.Metadata = models.Metadata{
		QueryDate: firstOrEmpty(printDatePattern, html),
		Station:   firstOrEmpty(stationPattern, html),
	}

	return record
}

func first(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func firstOrEmpty(re *regexp.Regexp, s string) string {
	v, _ := first(re, s)
	return v
}

// Text returns the visible text of an HTML document with blank lines
// collapsed, for the plain-text artifact.
func Text(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// HasResultTable reports whether the page carries any table; the result
// page is rendered as tables once the query went through.
func HasResultTable(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find("table").Length() > 0
}
