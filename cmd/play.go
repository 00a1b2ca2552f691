package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-phrase/notation"
	"go-phrase/sequencer"
)

// noteOffTail lets kept Note-Offs drain before the ports close
const noteOffTail = 250 * time.Millisecond

var playOpts struct {
	loop       bool
	loopType   string
	channel    int
	instrument int
	transpose  int
	duration   time.Duration
}

func init() {
	rootCmd.AddCommand(playCmd)
	f := playCmd.Flags()
	f.BoolVarP(&playOpts.loop, "loop", "l", false, "loop the pattern")
	f.StringVar(&playOpts.loopType, "loop-type", "all", "all or last")
	f.IntVarP(&playOpts.channel, "channel", "c", 0, "MIDI channel 0-15")
	f.IntVarP(&playOpts.instrument, "instrument", "i", -1, "program change before playing, -1 for none")
	f.IntVarP(&playOpts.transpose, "transpose", "t", 0, "semitones")
	f.DurationVarP(&playOpts.duration, "duration", "d", 0, "stop after this long (default: when done, or forever with --loop)")
}

var playCmd = &cobra.Command{
	Use:   "play <pattern>...",
	Short: "Play a pattern on the default track",
	Example: `  phrase play "do re mi fa sol"
  phrase play --loop -c 9 "[x . x x]"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if _, _, err := notation.Parse(text); err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		if playOpts.duration > 0 {
			ctx, cancel = context.WithTimeout(ctx, playOpts.duration)
			defer cancel()
		}

		e := startEngine(ctx)
		opts := sequencer.PlayOptions{
			Channel:    playOpts.channel,
			Instrument: playOpts.instrument,
			Loop:       playOpts.loop,
			LoopType:   sequencer.ParseLoopType(playOpts.loopType),
			Transpose:  playOpts.transpose,
		}
		if err := e.Play(text, opts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "playing %q at %.0f bpm\n", text, e.BPM())

		waitForTracks(ctx, e)
		e.Stop()
		time.Sleep(noteOffTail)
		return e.Shutdown()
	},
}

// waitForTracks blocks until ctx is done or every track has finished
func waitForTracks(ctx context.Context, e *sequencer.Engine) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.Group().AllStopped() {
				return
			}
		}
	}
}
