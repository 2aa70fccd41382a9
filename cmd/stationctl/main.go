package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/quartzlab/stationctl/internal/client"
	"github.com/quartzlab/stationctl/internal/config"
	"github.com/quartzlab/stationctl/internal/logging"
	"github.com/quartzlab/stationctl/internal/protocol"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "stationctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stationctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "client config file (TOML)")
	host := fs.String("host", "", "station host")
	port := fs.Int("port", 0, "station port")
	timeout := fs.Duration("timeout", 0, "reply timeout")
	raise := fs.Bool("raise", true, "fail on server exceptions and timeouts")
	op := fs.String("op", "", "operation: list|create|call|get|set (empty sends a bare message)")
	instrument := fs.String("instrument", "", "instrument name for typed operations")
	kind := fs.String("kind", "", "instrument kind for -op create")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fileCfg := config.DefaultClientConfig()
	if *configPath != "" {
		var err error
		fileCfg, err = loadClientConfig(*configPath)
		if err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			fileCfg.Host = *host
		case "port":
			fileCfg.Port = *port
		case "timeout":
			fileCfg.TimeoutMS = timeout.Milliseconds()
		case "raise":
			fileCfg.RaiseOnError = *raise
		}
	})
	if err := config.ValidateClientConfig(fileCfg); err != nil {
		return err
	}

	return client.WithSession(config.ClientSessionConfig(fileCfg), func(s *client.Session) error {
		return execute(s, *op, *instrument, *kind, fs.Args(), out)
	})
}

func execute(s *client.Session, op, instrument, kind string, args []string, out io.Writer) error {
	switch op {
	case "":
		message := "ping"
		if len(args) > 0 {
			message = strings.Join(args, " ")
		}
		reply, err := s.Ask(parseValue(message))
		if err != nil {
			return err
		}
		return printReply(out, reply)

	case "list":
		list, err := s.ListInstruments()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(list))
		for name := range list {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%s\t%s\n", name, list[name])
		}
		return nil

	case "create":
		params, err := kvParams(args)
		if err != nil {
			return err
		}
		spec := protocol.CreateSpec{Name: instrument, Kind: kind, Params: params}
		if err := s.CreateInstrument(spec); err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s (%s)\n", instrument, kind)
		return nil

	case "call":
		if len(args) == 0 {
			return fmt.Errorf("stationctl: -op call needs a method argument")
		}
		callArgs := make([]any, 0, len(args)-1)
		for _, raw := range args[1:] {
			callArgs = append(callArgs, parseValue(raw))
		}
		reply, err := s.Call(instrument, args[0], callArgs...)
		if err != nil {
			return err
		}
		return printReply(out, reply)

	case "get":
		params, err := s.GetParams(instrument)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%s = %s\n", name, renderValue(params[name]))
		}
		return nil

	case "set":
		if len(args) == 0 {
			return fmt.Errorf("stationctl: -op set needs key=value arguments")
		}
		params, err := kvParams(args)
		if err != nil {
			return err
		}
		if err := s.SetParams(instrument, params); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil

	default:
		return fmt.Errorf("stationctl: unknown operation %q", op)
	}
}

func kvParams(args []string) (map[string]any, error) {
	params := map[string]any{}
	for _, raw := range args {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("stationctl: %q is not key=value", raw)
		}
		params[key] = parseValue(value)
	}
	return params, nil
}

// parseValue decodes raw as JSON when it parses, so numbers, booleans and
// objects travel typed; anything else stays a string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func renderValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func printReply(out io.Writer, reply any) error {
	switch reply.(type) {
	case nil:
		_, err := fmt.Fprintln(out, "ok")
		return err
	case string, float64, bool:
		_, err := fmt.Fprintln(out, reply)
		return err
	default:
		b, err := json.MarshalIndent(reply, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}
}
