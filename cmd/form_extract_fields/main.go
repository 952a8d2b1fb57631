package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-form-pilot/internal/config"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
	"github.com/a3tai/mcp-form-pilot/internal/pdf/acroform"
)

func main() {
	flags := pflag.NewFlagSet("form_extract_fields", pflag.ContinueOnError)
	outputFormat := flags.String("format", "text", "Output format: text, json")
	maxFileSize := flags.Int64("maxfilesize", config.DefaultMaxFileSize, "Maximum form size in bytes")
	verbose := flags.Bool("verbose", false, "Log extraction details to stderr")
	flags.Usage = func() { printHelp(flags) }

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if flags.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF form path required\n\n")
		printHelp(flags)
		os.Exit(1)
	}

	log := logger.Nop()
	if *verbose {
		l, err := logger.New(config.ModeStdio, "debug")
		if err == nil {
			log = l
			defer log.Sync()
		}
	}

	draft, err := acroform.NewExtractor(*maxFileSize, log).ExtractFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting form fields: %v\n", err)
		os.Exit(1)
	}

	if err := outputResults(os.Stdout, draft, *outputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
}

func printHelp(flags *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Form Extract Fields - list the fillable fields of a PDF form")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "USAGE:")
	fmt.Fprintln(os.Stderr, "  form_extract_fields [OPTIONS] <pdf_file>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "OPTIONS:")
	flags.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "EXAMPLES:")
	fmt.Fprintln(os.Stderr, "  form_extract_fields application.pdf")
	fmt.Fprintln(os.Stderr, "  form_extract_fields --format json forms/w9.pdf > w9.json")
}

func outputResults(w io.Writer, draft *form.Draft, format string) error {
	switch format {
	case "json":
		data, err := draft.MarshalIndent()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		return outputText(w, draft)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputText(w io.Writer, draft *form.Draft) error {
	fmt.Fprintf(w, "✅ %s: %d fields, %d empty\n\n", draft.FormFileName, len(draft.Fields), draft.UnansweredCount())

	for i, f := range draft.Fields {
		fmt.Fprintf(w, "[%d] %s\n", i+1, f.Label)
		fmt.Fprintf(w, "    Type: %s\n", f.Type)
		if f.Description != "" && f.Description != f.Label {
			fmt.Fprintf(w, "    Description: %s\n", f.Description)
		}
		if f.Answered() {
			fmt.Fprintf(w, "    Value: %s\n", f.Value.String())
		}
		if f.Format != "" {
			fmt.Fprintf(w, "    Format: %s\n", f.Format)
		}
		if len(f.Options) > 0 {
			fmt.Fprintf(w, "    Options:")
			for i := range f.Options {
				fmt.Fprintf(w, " %s", f.OptionLabel(i))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
	return nil
}
