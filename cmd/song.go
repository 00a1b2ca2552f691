package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-phrase/config"
	"go-phrase/midi"
	"go-phrase/song"
	"go-phrase/theme"
	"go-phrase/tui"
)

var songOpts struct {
	monitor bool
	name    string
	save    string
}

func init() {
	rootCmd.AddCommand(songCmd)
	songCmd.AddCommand(songListCmd)
	f := songCmd.Flags()
	f.BoolVarP(&songOpts.monitor, "monitor", "m", true, "show the piano roll monitor")
	f.StringVarP(&songOpts.name, "name", "n", "", "play the newest library save with this name")
	f.StringVar(&songOpts.save, "save", "", "also store the song in the library under this name")
}

var songCmd = &cobra.Command{
	Use:   "song [file.yaml]",
	Short: "Play a YAML song",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSong(args)
		if err != nil {
			return err
		}
		if songOpts.save != "" {
			lib, err := song.DefaultLibrary()
			if err != nil {
				return err
			}
			name, err := lib.Save(s, songOpts.save)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", name)
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		e := startEngine(ctx)
		defer e.Shutdown()

		if _, err := s.Apply(e); err != nil {
			return err
		}

		if !songOpts.monitor {
			waitForTracks(ctx, e)
			e.Stop()
			return nil
		}

		w := midi.NewWatcher(midi.Driver{})
		go w.Run(ctx)
		m := tui.NewModel(e, w, theme.Load(config.Current().Palette))
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		_, err = p.Run()
		return err
	},
}

func loadSong(args []string) (*song.Song, error) {
	if len(args) == 1 {
		return song.Load(args[0])
	}
	lib, err := song.DefaultLibrary()
	if err != nil {
		return nil, err
	}
	if songOpts.name != "" {
		return lib.Find(songOpts.name)
	}
	return lib.Load("")
}

var songListCmd = &cobra.Command{
	Use:   "list",
	Short: "List songs saved in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := song.DefaultLibrary()
		if err != nil {
			return err
		}
		saves, err := lib.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(saves) == 0 {
			fmt.Fprintf(out, "no songs in %s\n", lib.Dir)
			return nil
		}
		for _, s := range saves {
			name := s.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(out, "%s  %-24s %s\n", s.Timestamp.Format("2006-01-02 15:04"), name, s.Filename)
		}
		return nil
	},
}
