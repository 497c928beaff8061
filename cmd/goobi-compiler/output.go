package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/services"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func printTemplates(command *cli.Command, templates ...*models.Template) error {
	out := command.Root().Writer

	switch format := command.String("output"); format {
	case formatJSON, formatYAML:
		return encode(out, format, templates)
	case formatTable:
		for _, template := range templates {
			_, err := fmt.Fprintf(out, "Template %d %q (workflow %d)\n", template.ID, template.Title, template.WorkflowID)
			if err != nil {
				return err
			}

			if err := writeTasks(out, template.Tasks); err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printPreview(command *cli.Command, preview *services.Preview) error {
	out := command.Root().Writer

	switch format := command.String("output"); format {
	case formatJSON, formatYAML:
		return encode(out, format, preview)
	case formatTable:
		_, err := fmt.Fprintf(out, "Diagram %s: %q (workflow %q)\n", preview.Diagram, preview.Title, preview.Workflow)
		if err != nil {
			return err
		}

		return writeTasks(out, preview.Tasks)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func encode(out io.Writer, format string, value any) error {
	if format == formatYAML {
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)

		if err := encoder.Encode(value); err != nil {
			return err
		}

		return encoder.Close()
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func writeTasks(out io.Writer, tasks []*models.Task) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	if _, err := fmt.Fprintln(w, "ORDER\tTITLE\tCONDITION\tSCRIPT"); err != nil {
		return err
	}

	for _, task := range tasks {
		script := task.ScriptName
		if script == "" {
			script = "-"
		}

		_, err := fmt.Fprintln(w, strconv.Itoa(task.Ordering)+"\t"+task.Title+"\t"+task.WorkflowCondition+"\t"+script)
		if err != nil {
			return err
		}
	}

	return w.Flush()
}
