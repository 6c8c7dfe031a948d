package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/lumirender/pkg/client"
	"github.com/psantana5/lumirender/pkg/scheduler"
	"github.com/spf13/cobra"
)

var (
	ctlServer  string
	ctlAPIKey  string
	ctlArchive bool
)

// ctlCmd represents the ctl command
var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running lumirender server",
	Long: `Commands that talk to the HTTP API of a running "lumirender serve".

Examples:
  lumirender ctl status
  lumirender ctl mode recording
  lumirender ctl set key intensity=0.8 x=0.25
  lumirender ctl frames --archive`,
}

var ctlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newCtlClient().Status()
		if err != nil {
			return err
		}
		return printStatus(st)
	},
}

var ctlModeCmd = &cobra.Command{
	Use:       "mode <interactive|recording|end-recording|stop>",
	Short:     "Change the scheduler mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{client.ActionInteractive, client.ActionRecording, client.ActionEndRecording, client.ActionStop},
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newCtlClient().SetMode(args[0])
		if err != nil {
			if client.IsConflict(err) {
				return fmt.Errorf("mode change rejected: %w", err)
			}
			return err
		}
		return printStatus(st)
	},
}

var ctlResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard queued work and stored frames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newCtlClient().Reset()
		if err != nil {
			return err
		}
		return printStatus(st)
	},
}

var ctlDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List rig devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := newCtlClient().Devices()
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(devices)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Params")
		for _, d := range devices {
			table.Append(d.ID, formatParams(d.Params))
		}
		table.Render()
		return nil
	},
}

var ctlSetCmd = &cobra.Command{
	Use:   "set <device> name=value...",
	Short: "Set device parameters",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args[1:])
		if err != nil {
			return err
		}
		d, err := newCtlClient().SetParams(args[0], params)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(d)
		}
		fmt.Printf("%s: %s\n", d.ID, formatParams(d.Params))
		return nil
	},
}

var ctlFramesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List frames held by the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, err := newCtlClient().Frames(ctlArchive)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(frames)
		}
		if len(frames) == 0 {
			fmt.Println("No frames stored")
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Index", "Time (ms)")
		for _, f := range frames {
			table.Append(strconv.Itoa(f.Index), strconv.FormatInt(f.TimeMS, 10))
		}
		table.Render()
		fmt.Printf("\nTotal frames: %d\n", len(frames))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.AddCommand(ctlStatusCmd, ctlModeCmd, ctlResetCmd, ctlDevicesCmd, ctlSetCmd, ctlFramesCmd)

	ctlCmd.PersistentFlags().StringVar(&ctlServer, "server", "http://localhost:8090", "lumirender API URL")
	ctlCmd.PersistentFlags().StringVar(&ctlAPIKey, "api-key", os.Getenv("LUMIRENDER_API_KEY"), "API key for state-changing calls")
	ctlFramesCmd.Flags().BoolVar(&ctlArchive, "archive", false, "list the archive instead of the memory store")
}

func newCtlClient() *client.Client {
	return client.NewClient(ctlServer, ctlAPIKey)
}

func printStatus(st *scheduler.Status) error {
	if IsJSONOutput() {
		return printJSON(st)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Mode", "Queued", "Pending", "Frames", "Progress")
	table.Append(
		string(st.Mode),
		strconv.Itoa(st.Queued),
		strconv.Itoa(st.Pending),
		strconv.Itoa(st.Frames),
		fmt.Sprintf("%.1f%%", st.Progress),
	)
	table.Render()
	return nil
}

func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

// parseParams parses name=value pairs
func parseParams(args []string) (map[string]float64, error) {
	params := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", arg)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, params[name])
	}
	return strings.Join(parts, " ")
}
