package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"go-phrase/errs"
	"go-phrase/midi"
)

var portsOpts struct {
	watch bool
	ping  bool
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVarP(&portsOpts.watch, "watch", "w", false, "keep polling and report hot-plugged ports")
	portsCmd.Flags().BoolVar(&portsOpts.ping, "ping", false, "send middle C to the default output")
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		driverOpened = true
		return runPorts(cmd, midi.Driver{})
	},
}

func runPorts(cmd *cobra.Command, op midi.Opener) error {
	out := cmd.OutOrStdout()
	if err := listPorts(out, op); err != nil {
		return err
	}
	if portsOpts.ping {
		if err := ping(out, midi.NewRegistry(op)); err != nil {
			return err
		}
	}
	if !portsOpts.watch {
		return nil
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	w := midi.NewWatcher(op)
	go w.Run(ctx)
	fmt.Fprintln(out, "\nwatching for changes (ctrl-c to stop)")
	for ev := range w.Events() {
		kind := "output"
		if ev.Input {
			kind = "input"
		}
		fmt.Fprintf(out, "%s %s %s: %s\n", time.Now().Format("15:04:05"), kind, ev.Type, ev.Name)
	}
	return nil
}

func listPorts(out io.Writer, op midi.Opener) error {
	ins, err := op.InNames()
	if err != nil {
		return err
	}
	outs, err := op.OutNames()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "=== MIDI Input Ports ===")
	for i, n := range ins {
		fmt.Fprintf(out, "  %d: %s\n", i, n)
	}
	fmt.Fprintln(out, "\n=== MIDI Output Ports ===")
	for i, n := range outs {
		fmt.Fprintf(out, "  %d: %s\n", i, n)
	}
	return nil
}

// ping plays a short middle C on the default output
func ping(out io.Writer, reg *midi.Registry) error {
	defer reg.Close()
	p := reg.Out(portFlag)
	if p == nil {
		return errs.New(errs.PortNotFound, "no output matches %q", portFlag)
	}
	fmt.Fprintf(out, "\nping %s\n", p.Name())
	if err := p.Send(midi.NoteOnMsg(0, 60, int(midi.DefaultVelocity))); err != nil {
		return err
	}
	time.Sleep(200 * time.Millisecond)
	return p.Send(midi.NoteOffMsg(0, 60))
}
