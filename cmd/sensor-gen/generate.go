package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var funcMap = template.FuncMap{
	"lower":    strings.ToLower,
	"quote":    strconv.Quote,
	"float":    formatFloat,
	"duration": formatDuration,
	"strings":  stringSlice,
	"ranges":   rangeSlice,
}

var catalogTmpl = template.Must(template.New("catalog").Funcs(funcMap).Parse(`// Code generated by sensor-gen from {{.Source}}. DO NOT EDIT.

package sensor

import "time"

// Sensor type identifiers.
const (
{{- range .Sensors}}
	{{.Const}} ID = {{.ID}}
{{- end}}
)

var idNames = map[ID]string{
{{- range .Sensors}}
	{{.Const}}: {{quote .Name}},
{{- end}}
}

var generatedDescriptors = []Descriptor{
{{- range .Sensors}}
	{
		ID: {{.Const}},
		Name: {{quote (lower .Name)}},
		Vendor: {{quote $.Vendor}},
		FirmwareVersion: {{quote $.FirmwareVersion}},
		HardwareVersion: {{quote $.HardwareVersion}},
		MaxRange: {{float .MaxRange}},
		Precision: {{float .Precision}},
		Power: {{float .Power}},
		MinSamplePeriod: {{duration .MinPeriod}},
		MaxSamplePeriod: {{duration .MaxPeriod}},
{{- if .Permission}}
		Permission: {{quote .Permission}},
{{- end}}
{{- if .FreezeExempt}}
		FreezeExempt: true,
{{- end}}
		Fields: {{strings .Fields}},
		Ranges: {{ranges .Fields}},
	},
{{- end}}
}
`))

type catalogData struct {
	*RawCatalog
	Source string
}

// Generate renders the catalog as unformatted Go source. source is named in
// the generated header.
func Generate(cat *RawCatalog, source string) (string, error) {
	var b strings.Builder
	if err := catalogTmpl.Execute(&b, catalogData{RawCatalog: cat, Source: source}); err != nil {
		return "", fmt.Errorf("template: %w", err)
	}
	return b.String(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatDuration renders nanoseconds in the largest exact unit.
func formatDuration(ns int64) string {
	d := time.Duration(ns)
	switch {
	case d%time.Second == 0:
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
	case d%time.Microsecond == 0:
		return fmt.Sprintf("%d * time.Microsecond", d/time.Microsecond)
	}
	return fmt.Sprintf("%d", ns)
}

func stringSlice(fields []RawFieldDef) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strconv.Quote(f.Name)
	}
	return "[]string{" + strings.Join(names, ", ") + "}"
}

func rangeSlice(fields []RawFieldDef) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		s := fmt.Sprintf("{Name: %s, Min: %s, Max: %s", strconv.Quote(f.Name), formatFloat(f.Min), formatFloat(f.Max))
		if f.Step != 0 {
			s += ", Step: " + formatFloat(f.Step)
		}
		parts[i] = s + "}"
	}
	return "[]FieldRange{" + strings.Join(parts, ", ") + "}"
}
