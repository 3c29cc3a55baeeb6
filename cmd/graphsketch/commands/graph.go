package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"graphsketch/internal/loader"
	"graphsketch/internal/service"
)

var (
	exportFormat   = formatFlag("json")
	exportOutput   string
	importStrategy string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the stored graph with Graphviz",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.svc.Render(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rendered %d nodes and %d edges to %s\n", result.Nodes, result.Edges, result.Path)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored graph as json, yaml, dot or a render description",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		write := func(w io.Writer) error {
			return writeExport(a.svc, string(exportFormat), w)
		}
		if exportOutput == "" || exportOutput == "-" {
			return write(cmd.OutOrStdout())
		}
		return writeFile(exportOutput, write)
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a .json, .yaml or .yml graph file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := loader.LoadFile(cmd.Context(), a.svc, args[0], importStrategy)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d nodes and %d edges (%s)\n", result.NodesCreated, result.EdgesCreated, result.Strategy)
		return nil
	},
}

func init() {
	exportCmd.Flags().VarP(&exportFormat, "format", "f", "output format: json, yaml, dot, description")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	importCmd.Flags().StringVar(&importStrategy, "strategy", service.StrategyMerge, "merge or replace")
}

// formatFlag restricts --format to the supported export formats
type formatFlag string

var _ pflag.Value = (*formatFlag)(nil)

func (f *formatFlag) String() string { return string(*f) }

func (f *formatFlag) Type() string { return "format" }

func (f *formatFlag) Set(v string) error {
	switch v {
	case "json", "yaml", "yml", "dot", "description":
		*f = formatFlag(v)
		return nil
	default:
		return fmt.Errorf("must be one of json, yaml, dot, description")
	}
}

// writeFile creates path and hands it to write. A failed close is reported
// when write itself succeeded.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func writeExport(svc *service.GraphService, format string, w io.Writer) error {
	switch format {
	case "json":
		return svc.ExportJSON(w)
	case "yaml", "yml":
		return svc.ExportYAML(w)
	case "dot":
		data, err := svc.DOT()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "description":
		desc, err := svc.Describe()
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(desc)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
