package pcs

import "strings"

// Display is the human label and badge variant of a status code.
type Display struct {
	Label   string `json:"label"`
	Variant string `json:"variant"`
}

var statusDisplays = map[string]Display{
	"ok":                   {"OK", "success"},
	"bloqueado":            {"Bloqueado", "destructive"},
	"bloqueado_documento":  {"Doc. Pendente", "warning"},
	"pendente_autorizacao": {"Aguardando", "pending"},
	"conflito_horarios":    {"Conflito Horários", "warning"},
	"aguardando_navio":     {"Aguardando Navio", "waiting"},
	"autorizado":           {"Autorizado", "success"},
	"pendente":             {"Pendente", "pending"},
	"realizada":            {"Realizada", "success"},
	"concluida":            {"Concluída", "success"},
	"cancelada":            {"Cancelada", "destructive"},
	"negado":               {"Negado", "destructive"},
}

// StatusDisplay maps a status code to its display form. Unknown codes are
// title-cased with underscores turned into spaces.
func StatusDisplay(code string) Display {
	if d, ok := statusDisplays[code]; ok {
		return d
	}
	words := strings.Split(code, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return Display{Label: strings.Join(words, " "), Variant: "secondary"}
}
