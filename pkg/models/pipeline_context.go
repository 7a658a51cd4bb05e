package models

// PipelineContext is the value handed from one pipeline stage to the next.
// Each stage reads what its predecessor produced and appends its own output.
type PipelineContext struct {
	TemplateID   string         `json:"template_id"`
	ReportID     string         `json:"report_id"`
	Module       string         `json:"module,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
	ProcessArgs  map[string]any `json:"process_args,omitempty"`
	Placeholders map[string]any `json:"placeholders,omitempty"`
	HTML         string         `json:"html,omitempty"`
	PDFOptions   *PDFOptions    `json:"pdf_options,omitempty"`
	OutputFile   string         `json:"output_file,omitempty"`
}

// UnmarshalJSON restores integers in the free-form maps as integers instead of
// float64, so a stage sees the same values its predecessor produced.
func (pc *PipelineContext) UnmarshalJSON(data []byte) error {
	type plain PipelineContext

	var decoded plain

	err := DecodeJSON(data, &decoded)
	if err != nil {
		return err
	}

	*pc = PipelineContext(decoded)
	pc.Args = normalizeMap(pc.Args)
	pc.ProcessArgs = normalizeMap(pc.ProcessArgs)
	pc.Placeholders = normalizeMap(pc.Placeholders)

	return nil
}
