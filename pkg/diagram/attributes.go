package diagram

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StepAttributes are the task properties a diagram author sets on a step. They are copied
// verbatim into the compiled task.
type StepAttributes struct {
	Title                string `json:"title"                   mapstructure:"title"                yaml:"title"`
	Priority             int    `json:"priority"                mapstructure:"priority"             yaml:"priority"`
	EditType             int    `json:"edit_type"               mapstructure:"editType"             yaml:"editType"`
	BatchStep            bool   `json:"batch_step"              mapstructure:"batchStep"            yaml:"batchStep"`
	TypeAutomatic        bool   `json:"type_automatic"          mapstructure:"typeAutomatic"        yaml:"typeAutomatic"`
	TypeExportDMS        bool   `json:"type_export_dms"         mapstructure:"typeExportDMS"        yaml:"typeExportDMS"`
	TypeExportRussian    bool   `json:"type_export_russian"     mapstructure:"typeExportRussian"    yaml:"typeExportRussian"`
	TypeMetadata         bool   `json:"type_metadata"           mapstructure:"typeMetadata"         yaml:"typeMetadata"`
	TypeImportFileUpload bool   `json:"type_import_file_upload" mapstructure:"typeImportFileUpload" yaml:"typeImportFileUpload"`
	TypeImagesRead       bool   `json:"type_images_read"        mapstructure:"typeImagesRead"       yaml:"typeImagesRead"`
	TypeImagesWrite      bool   `json:"type_images_write"       mapstructure:"typeImagesWrite"      yaml:"typeImagesWrite"`
	TypeAcceptClose      bool   `json:"type_accept_close"       mapstructure:"typeAcceptClose"      yaml:"typeAcceptClose"`
	TypeCloseVerify      bool   `json:"type_close_verify"       mapstructure:"typeCloseVerify"      yaml:"typeCloseVerify"`

	Script *ScriptAttributes `json:"script,omitempty" mapstructure:"-" yaml:"-"`
}

// ScriptAttributes are carried by script steps only.
type ScriptAttributes struct {
	Name string `json:"name" mapstructure:"scriptName" yaml:"scriptName"`
	Path string `json:"path" mapstructure:"scriptPath" yaml:"scriptPath"`
}

// DecodeStepAttributes converts loosely typed extension attributes (as found in XML attributes
// or YAML maps) into StepAttributes. String values such as "true" or "3" are accepted.
// When script is set the scriptName/scriptPath keys are decoded into the Script part.
func DecodeStepAttributes(raw map[string]any, script bool) (StepAttributes, error) {
	var attrs StepAttributes

	if err := weakDecode(raw, &attrs); err != nil {
		return StepAttributes{}, fmt.Errorf("failed to decode step attributes: %w", err)
	}

	if script {
		var scriptAttrs ScriptAttributes
		if err := weakDecode(raw, &scriptAttrs); err != nil {
			return StepAttributes{}, fmt.Errorf("failed to decode script attributes: %w", err)
		}

		attrs.Script = &scriptAttrs
	}

	return attrs, nil
}

// DecodeProcessAttributes fills the extension fields of p (output name, docket and ruleset
// ids) from loosely typed attributes.
func DecodeProcessAttributes(raw map[string]any, p *Process) error {
	if err := weakDecode(raw, p); err != nil {
		return fmt.Errorf("failed to decode process attributes: %w", err)
	}

	return nil
}

func weakDecode(input map[string]any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}
