package api

import (
	"net/http"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// CheckSettings parses a settings string without touching the filter store
// and returns the rules it would produce, named by the running engine.
// POST /api/v1/check
func (h *Handler) CheckSettings(w http.ResponseWriter, r *http.Request) {
	var req CheckSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteInvalidRequest(w, "Invalid JSON: "+err.Error())
		return
	}

	grammar := h.grammar
	if req.Grammar != "" {
		grammar = rules.Grammar(req.Grammar)
	}
	if grammar != rules.GrammarExplicit && grammar != rules.GrammarLegacy {
		WriteInvalidRequest(w, `Unknown grammar "`+string(grammar)+`"`)
		return
	}

	strict := h.strictActions
	if req.StrictActions != nil {
		strict = *req.StrictActions
	}

	parser := rules.NewParser(grammar, strict)
	parser.Logger = log.Discard()

	parsed, err := parser.Parse(req.Settings)
	if err != nil {
		WriteParseError(w, err.Error())
		return
	}

	namer := h.ctrl.Namer()
	response := CheckSettingsResponse{
		Grammar: string(grammar),
		Rules:   make([]ParsedRule, 0, len(parsed)),
	}
	for _, rule := range parsed {
		response.Rules = append(response.Rules, ParsedRule{Rule: rule, Name: namer.Name(rule)})
	}

	writeJSONData(w, response)
}
