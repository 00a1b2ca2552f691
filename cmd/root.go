package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-phrase/config"
	"go-phrase/debug"
	"go-phrase/midi"
	"go-phrase/sequencer"
)

var (
	verbose    bool
	bpmFlag    float64
	portFlag   string
	configPath string
	debugLog   bool

	driverOpened bool
)

var rootCmd = &cobra.Command{
	Use:   "phrase",
	Short: "Live-coding MIDI sequencer",
	Long: `phrase plays short pattern strings ("do re <mi fa> [sol la]x2") on MIDI
ports, loops them on tracks and keeps them in sync.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		o, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if bpmFlag > 0 {
			o.BPM = bpmFlag
		}
		if portFlag != "" {
			o.DefaultOutput = portFlag
		}
		o.Verbose = o.Verbose || verbose
		config.Apply(o)

		debug.SetVerbose(o.Verbose)
		if debugLog {
			return debug.Enable()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if driverOpened {
			midi.CloseDriver()
		}
		debug.Disable()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	f.BoolVar(&debugLog, "debug", false, "write ~/.config/go-phrase/debug.log")
	f.Float64Var(&bpmFlag, "bpm", 0, "tempo (default from config, 120)")
	f.StringVarP(&portFlag, "port", "p", "", "default output port (substring match)")
	f.StringVar(&configPath, "config", "", "config file (default ~/.config/go-phrase/config.json)")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// signalContext is cancelled on interrupt or terminate
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// startEngine opens the system MIDI driver and starts an engine on it
func startEngine(ctx context.Context) *sequencer.Engine {
	driverOpened = true
	e := sequencer.NewEngine(midi.NewRegistry(midi.Driver{}))
	e.Start(ctx)
	return e
}
