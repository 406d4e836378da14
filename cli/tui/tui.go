package tui

import "fmt"

// ViewInspect is the inspect view. Its data is an InspectData.
const ViewInspect = "inspect"

// Run starts the TUI for the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	d, ok := data.(InspectData)
	if !ok {
		return fmt.Errorf("%s view requires tui.InspectData, got %T", viewType, data)
	}
	return RunInspectTUI(d)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	return viewType == ViewInspect
}
