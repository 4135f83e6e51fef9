package tools

// Capability names as offered to the reasoning service.
const (
	ToolNavigate           = "navigate"
	ToolClick              = "click"
	ToolCreateFunction     = "createFunction"
	ToolUpdateFunction     = "updateFunction"
	ToolDeleteFunction     = "deleteFunction"
	ToolMarkPageComplete   = "markPageComplete"
	ToolMarkPageIncomplete = "markPageIncomplete"
)

// Per-role capability sets.
//
//nolint:gochecknoglobals // fixed allow-lists
var (
	PlanningTools = []string{ToolNavigate}
	ReviewTools   = []string{ToolNavigate}
	EditingTools  = []string{
		ToolNavigate,
		ToolClick,
		ToolCreateFunction,
		ToolUpdateFunction,
		ToolMarkPageComplete,
		ToolMarkPageIncomplete,
	}
)

// EditingToolsWithDelete returns the editor set, optionally including deleteFunction.
func EditingToolsWithDelete(allowDelete bool) []string {
	out := append([]string(nil), EditingTools...)
	if allowDelete {
		out = append(out, ToolDeleteFunction)
	}
	return out
}

// Result texts shared by the code and click capabilities.
const (
	msgCodeUpdated   = "Code has been successfully updated."
	msgFunctionAdded = "New function created"
	msgClickSuccess  = "Click success!"
)
