package cmd

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"orderbot/internal/bootstrap/config"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/suppliers"
)

// parseResult is the YAML document printed by parse.
type parseResult struct {
	Marker string       `yaml:"marker"`
	Error  string       `yaml:"error,omitempty"`
	Event  *order.Event `yaml:"event,omitempty"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse a message and print the event as YAML",
		Long:  "Parses the text given as arguments, or each non-empty stdin line when no argument is given. Nothing is stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			cfg, err := config.Load(ctx, cfgFile)
			if err != nil {
				return errs.Wrap(err, "load config")
			}
			names := cfg.Parser.Suppliers
			if path := strings.TrimSpace(cfg.Parser.SuppliersFile); path != "" {
				if names, err = suppliers.Load(path); err != nil {
					return err
				}
			}
			parser := order.NewParser(order.NewSupplierCatalog(names))

			texts, err := parseInputs(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			for _, text := range texts {
				if err := enc.Encode(describeParse(parser, text)); err != nil {
					return errs.Wrap(err, "write parse output")
				}
			}
			return nil
		},
	}
}

func parseInputs(stdin io.Reader, args []string) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}

	var texts []string
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, "read stdin")
	}
	if len(texts) == 0 {
		return nil, errors.New("no text to parse")
	}
	return texts, nil
}

func describeParse(parser *order.Parser, text string) parseResult {
	ev, err := parser.Parse(text)
	switch {
	case err == nil:
		return parseResult{Marker: order.MarkerChecked, Event: &ev}
	case errors.Is(err, order.ErrNotOrderMessage):
		return parseResult{Marker: order.MarkerSkipped, Error: err.Error()}
	default:
		return parseResult{Marker: order.MarkerInvalid, Error: err.Error()}
	}
}

func init() {
	rootCmd.AddCommand(newParseCmd())
}
