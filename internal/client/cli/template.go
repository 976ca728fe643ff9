package cli

const entityTemplate = `
=== {{ .Type }} {{ .ID }} ===
{{ if .Local }}
(created offline, not yet sent to the server)
{{ end }}
{{- range .Fields }}
{{ printf "%-*s" $.Width .Name }}  {{ .Value }}
{{- end }}
`

const entityListTemplate = `
=== {{ .Type }} ===

{{- if eq (len .Entities) 0 }}
No {{ .Type }} entities found.

Use 'entitysync save {{ .Type }} <json>' to add one or 'entitysync sync' to fetch from the server.
{{ else }}
Found {{ len .Entities }} entit{{ if eq (len .Entities) 1 }}y{{ else }}ies{{ end }}:
{{ range .Entities }}
- ID {{ .ID }}{{ if .Local }} (pending){{ end }}
{{- range .Fields }}
   {{ .Name }}: {{ .Value }}
{{- end }}
{{ end }}
{{- end }}`

const statusTemplate = `
=== Status ===

Mode:        {{ if .Online }}online{{ else }}offline{{ end }}
Last sync:   {{ if eq .LastSync "-1" }}never{{ else }}{{ .LastSync }}{{ end }}
Unsaved:     {{ .Unsaved }}
Deleted:     {{ .Deleted }}
{{- if or .Unsaved .Deleted }}

Pending changes will be sent on the next 'entitysync sync'.
{{- else }}

All local changes are synchronized.
{{- end }}

Cached entities:
{{- range .Types }}
  {{ printf "%-*s" $.Width .Name }}  {{ .Count }}
{{- end }}
`
