package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/valyala/fasthttp"

	"github.com/ghalamif/perfwatch"
)

const bannerPlain = `
 ___            ___
| _ \___ _ _ __/ / \ __ ____ _| |_ __| |_
|  _/ -_) '_/ _/ /\ V  V / _' |  _/ _| ' \
|_| \___|_| |_/_/  \_/\_/\__,_|\__\__|_||_|
`

var (
	configPath string
	serverURL  string
)

func main() {
	app := &cli.App{
		Name:  "perfwatch",
		Usage: "perfusion device dashboard: telemetry, flow resistance and operator commands",
		Before: func(c *cli.Context) error {
			if os.Getenv("NO_BANNER") == "" {
				fmt.Fprint(c.App.ErrWriter, bannerPlain+"\n")
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			statsCommand(),
			commandCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "perfwatch: %v\n", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "path to the YAML configuration file",
		EnvVars:     []string{"PERFWATCH_CONFIG"},
		Value:       "./data/config.yaml",
		Destination: &configPath,
	}
}

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "url",
		Usage:       "base URL of a running perfwatch view server",
		EnvVars:     []string{"PERFWATCH_URL"},
		Value:       "http://localhost:8090",
		Destination: &serverURL,
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the poll loop, the recorder and the view server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "override server.addr",
				EnvVars: []string{"PERFWATCH_ADDR"},
			},
			&cli.StringFlag{
				Name:    "source",
				Usage:   "override source.kind (http, opcua, simulator)",
				EnvVars: []string{"PERFWATCH_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "status-url",
				Usage:   "override source.http.base_url",
				EnvVars: []string{"PERFWATCH_STATUS_URL"},
			},
			&cli.StringFlag{
				Name:  "pressure",
				Usage: "pressure line used for flow resistance (pressure:kidney1, pressure:kidney2)",
			},
			&cli.BoolFlag{
				Name:  "lock-when-disconnected",
				Usage: "refuse manual commands while the device is unreachable",
			},
			&cli.StringFlag{
				Name:  "archive-dir",
				Usage: "override recorder.wal.dir",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadOrDefault(configPath)
			if err != nil {
				return err
			}
			if v := c.String("addr"); v != "" {
				cfg.Server.Addr = v
			}
			if v := c.String("source"); v != "" {
				cfg.Source.Kind = v
			}
			if v := c.String("status-url"); v != "" {
				cfg.Source.HTTP.BaseURL = v
			}

			flow, err := perfwatch.ConfFromConfig(cfg)
			if err != nil {
				return err
			}
			var in []perfwatch.StreamInOption
			if v := c.String("pressure"); v != "" {
				in = append(in, perfwatch.StreamInPressure(v))
			}
			if c.IsSet("lock-when-disconnected") {
				in = append(in, perfwatch.StreamInLockWhenDisconnected(c.Bool("lock-when-disconnected")))
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return flow.StreamIN(in...).Run(ctx, perfwatch.StreamOutArchiveDir(c.String("archive-dir")))
		},
	}
}

// loadOrDefault falls back to the built-in defaults only when the default
// config path is missing.
func loadOrDefault(path string) (*perfwatch.Config, error) {
	cfg, err := perfwatch.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if path == "./data/config.yaml" && errors.Is(err, fs.ErrNotExist) {
		return perfwatch.DefaultConfig(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Load and validate a config file without starting anything",
		Flags: []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := perfwatch.LoadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "config %s looks good (source=%s recorder=%t)\n",
				configPath, cfg.Source.Kind, cfg.Recorder.Enabled)
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Poll the /metrics endpoint and print live counters",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "refresh interval",
				Value: 2 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(c.Duration("interval"))
			defer ticker.Stop()

			url := strings.TrimRight(serverURL, "/") + "/metrics"
			fmt.Fprintf(c.App.Writer, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printMetricsSnapshot(c, url); err != nil {
						fmt.Fprintf(c.App.ErrWriter, "stats error: %v\n", err)
					}
				}
			}
		},
	}
}

var statTargets = []string{
	"perfwatch_connected",
	"perfwatch_resistance",
	"perfwatch_readings_recorded_total",
	"perfwatch_recorder_queue_length",
	"perfwatch_wal_size_bytes",
}

func printMetricsSnapshot(c *cli.Context, url string) error {
	code, body, err := fasthttp.GetTimeout(nil, url, 2*time.Second)
	if err != nil {
		return err
	}
	if code != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status %d", code)
	}

	values := parseMetrics(body, statTargets)
	fmt.Fprintf(c.App.Writer, "[%s] connected=%g resistance=%g recorded=%g queue=%g wal_bytes=%g\n",
		time.Now().Format(time.RFC3339),
		values["perfwatch_connected"],
		values["perfwatch_resistance"],
		values["perfwatch_readings_recorded_total"],
		values["perfwatch_recorder_queue_length"],
		values["perfwatch_wal_size_bytes"],
	)
	return nil
}

func parseMetrics(body []byte, keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range keys {
			if !strings.HasPrefix(line, key+" ") {
				continue
			}
			var value float64
			if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
				out[key] = value
			}
		}
	}
	return out
}

func commandCommand() *cli.Command {
	return &cli.Command{
		Name:      "command",
		Usage:     "Send an operator command to a running perfwatch",
		ArgsUsage: "<pump|mode|cooling|emergency-stop> [on|off|manual|automatic]",
		Flags:     []cli.Flag{serverFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.ShowSubcommandHelp(c)
			}
			kind := c.Args().Get(0)
			payload, err := commandPayload(kind, c.Args().Get(1))
			if err != nil {
				return err
			}
			return postCommand(c, kind, payload)
		},
	}
}

func commandPayload(kind, arg string) (*perfwatch.CommandPayload, error) {
	var p perfwatch.CommandPayload
	switch perfwatch.CommandKind(kind) {
	case perfwatch.CommandPump, perfwatch.CommandCooling:
		on, err := parseOnOff(arg)
		if err != nil {
			return nil, err
		}
		p.On = &on
	case perfwatch.CommandMode:
		if arg == "" {
			return nil, fmt.Errorf("mode command needs manual or automatic")
		}
		p.Mode = arg
	case perfwatch.CommandEmergencyStop:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %q", kind)
	}
	return &p, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func postCommand(c *cli.Context, kind string, payload *perfwatch.CommandPayload) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(serverURL, "/") + "/api/commands/" + kind)
	req.Header.SetMethod(fasthttp.MethodPost)
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	deadline, _ := ctx.Deadline()
	if err := fasthttp.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if code := resp.StatusCode(); code >= 300 {
		return fmt.Errorf("%s refused (%d): %s", kind, code, strings.TrimSpace(string(resp.Body())))
	}
	fmt.Fprintf(c.App.Writer, "%s sent\n", kind)
	return nil
}
