package service

// Model is an agent model a run can be executed with.
type Model struct {
	Slug     string `json:"slug"`
	Provider string `json:"provider"`
	Tier     string `json:"tier"`
}

// DefaultModelSlug is used for single test runs that name no model.
const DefaultModelSlug = "gemini-2.5-flash"

var modelCatalog = []Model{
	{"gemini-2.5-flash-lite", "Google", "light_cost_effective"},
	{"gemini-2.0-flash-lite", "Google", "light_cost_effective"},
	{"gpt-5-nano", "OpenAI", "light_cost_effective"},
	{"gpt-4.1-nano", "OpenAI", "light_cost_effective"},
	{"gpt-4o-mini", "OpenAI", "light_cost_effective"},
	{"claude-3-haiku-20240307", "Anthropic", "light_cost_effective"},

	{"gemini-2.5-flash", "Google", "medium_balanced"},
	{"gemini-2.0-flash", "Google", "medium_balanced"},
	{"gpt-5-mini", "OpenAI", "medium_balanced"},
	{"gpt-4.1-mini", "OpenAI", "medium_balanced"},
	{"claude-3-5-haiku-20241022", "Anthropic", "medium_balanced"},

	{"gemini-2.5-pro", "Google", "heavy_effective"},
	{"gpt-5", "OpenAI", "heavy_effective"},
	{"gpt-4.1", "OpenAI", "heavy_effective"},
	{"claude-3-7-sonnet-20250219", "Anthropic", "heavy_effective"},
	{"claude-sonnet-4-20250514", "Anthropic", "heavy_effective"},

	{"o3-mini", "OpenAI", "pro_reasoning"},
	{"o4-mini", "OpenAI", "pro_reasoning"},
	{"o3", "OpenAI", "pro_reasoning"},
	{"o3-pro-2025-06-10", "OpenAI", "pro_reasoning"},
	{"claude-opus-4-20250514", "Anthropic", "pro_reasoning"},
	{"claude-opus-4-1-20250805", "Anthropic", "pro_reasoning"},
}

// Models returns the catalog in display order.
func Models() []Model {
	out := make([]Model, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// LookupModel returns the catalog entry for slug.
func LookupModel(slug string) (Model, bool) {
	for _, m := range modelCatalog {
		if m.Slug == slug {
			return m, true
		}
	}
	return Model{}, false
}
