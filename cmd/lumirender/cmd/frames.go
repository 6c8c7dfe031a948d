package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	framesType string
	framesDir  string
	framesPath string
)

// framesCmd represents the frames command
var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Inspect or clear a frame archive",
	Long:  `Commands for listing and deleting frames stored in a file or SQLite archive.`,
}

// framesListCmd represents the frames list command
var framesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived frames",
	RunE:  runFramesList,
}

// framesClearCmd represents the frames clear command
var framesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every archived frame",
	RunE:  runFramesClear,
}

func init() {
	rootCmd.AddCommand(framesCmd)
	framesCmd.AddCommand(framesListCmd)
	framesCmd.AddCommand(framesClearCmd)

	framesCmd.PersistentFlags().StringVar(&framesType, "type", "", "archive type: file or sqlite (default from config)")
	framesCmd.PersistentFlags().StringVar(&framesDir, "dir", "", "image sequence directory (file archives)")
	framesCmd.PersistentFlags().StringVar(&framesPath, "path", "", "database path (sqlite archives)")
}

type frameRow struct {
	Index  int   `json:"index"`
	TimeMS int64 `json:"time_ms"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
}

func openArchive() (framestore.FrameStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ac := cfg.Archive
	if framesType != "" {
		ac.Type = framesType
	}
	if framesDir != "" {
		ac.Directory = framesDir
	}
	if framesPath != "" {
		ac.Path = framesPath
	}
	if ac.Type != framestore.TypeFile && ac.Type != framestore.TypeSQLite {
		return nil, fmt.Errorf("%w: %q is not a persistent archive", framestore.ErrUnsupportedStore, ac.Type)
	}
	return framestore.NewStore(ac, afero.NewOsFs())
}

func runFramesList(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	rows := make([]frameRow, 0, store.FrameCount())
	if !store.IsEmpty() {
		store.Reset()
		for i := 0; ; i++ {
			rec, ok := store.CurrentFrame()
			if !ok {
				break
			}
			rows = append(rows, frameRow{Index: i, TimeMS: rec.Time.Milliseconds(), Width: rec.Width, Height: rec.Height})
			if !store.HasNext() {
				break
			}
			store.Next()
		}
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No frames stored")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Index", "Time (ms)", "Size")
	for _, r := range rows {
		table.Append(
			fmt.Sprintf("%d", r.Index),
			fmt.Sprintf("%d", r.TimeMS),
			fmt.Sprintf("%dx%d", r.Width, r.Height),
		)
	}
	table.Render()
	fmt.Printf("\nTotal frames: %d\n", len(rows))
	return nil
}

func runFramesClear(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	n := store.FrameCount()
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear archive: %w", err)
	}
	fmt.Printf("Deleted %d frames\n", n)
	return nil
}
