package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quartzlab/stationctl/internal/config"
	"github.com/quartzlab/stationctl/internal/stationcfg"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "configsplit: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("configsplit", flag.ContinueOnError)
	input := fs.String("input", "", "instrument config document to split (YAML)")
	serverOut := fs.String("server-out", "", "write the server view to this path")
	guiOut := fs.String("gui-out", "", "write the GUI view to this path")
	fullOut := fs.String("full-out", "", "write the merged full view to this path")
	keepStation := fs.Bool("keep-station", false, "keep the residual station file and print its path")
	template := fs.String("template", "", "write a config template instead: client|station|instruments")
	output := fs.String("output", "", "output path for -template")
	force := fs.Bool("force", false, "overwrite an existing template target")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *template != "" {
		if *output == "" {
			return fmt.Errorf("configsplit: -template needs -output")
		}
		if err := config.WriteTemplate(*output, *template, *force); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s template to %s\n", *template, *output)
		return nil
	}

	if *input == "" {
		return fmt.Errorf("configsplit: -input is required")
	}

	res, err := stationcfg.SplitFile(*input, stationcfg.DefaultOptions())
	if err != nil {
		return err
	}
	if !*keepStation {
		defer func() {
			if cErr := res.Cleanup(); err == nil {
				err = cErr
			}
		}()
	}

	if err := writeYAML(*serverOut, res.ServerConfig); err != nil {
		return err
	}
	if err := writeYAML(*guiOut, res.GUIConfig); err != nil {
		return err
	}
	if err := writeYAML(*fullOut, res.FullConfig); err != nil {
		return err
	}

	fmt.Fprintf(out, "split %d instruments from %s\n", len(res.FullConfig), *input)
	if *keepStation {
		fmt.Fprintf(out, "station residual at %s\n", res.StationPath)
	}
	return nil
}

func writeYAML(path string, v any) error {
	if path == "" {
		return nil
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
