package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ftl/dcf39/audio"
	"github.com/ftl/dcf39/fsk"
	"github.com/ftl/dcf39/rx"
)

var pulseFlags = struct {
	source     string
	bufferSize int
}{}

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "decode telegrams from a Pulseaudio source",
	Run:   runWithCtx(runPulse),
}

func init() {
	rootCmd.AddCommand(pulseCmd)

	pulseCmd.Flags().StringVar(&pulseFlags.source, "source", "", "Pulseaudio source ID to use")
	pulseCmd.Flags().IntVar(&pulseFlags.bufferSize, "buffer", audio.DefaultBufferSize, "the number of samples per audio block")
}

func runPulse(ctx context.Context, env *environment, cmd *cobra.Command, args []string) {
	source, err := audio.OpenPulse("DCF39", pulseFlags.source, fsk.SampleRate, pulseFlags.bufferSize)
	if err != nil {
		log.Fatal(err)
	}

	reporter := append(rx.MultiReporter{rx.NewTextReporter(os.Stdout)}, env.reporter...)
	receiver := rx.NewReceiver(reporter, rx.WallClock, source.SampleRate(), 0)
	receiver.SetTracer(env.tracer())
	receiver.SetScope(env.scope)

	copied := make(chan error, 1)
	go func() {
		_, err := audio.Copy(ctx, receiver, source, pulseFlags.bufferSize)
		copied <- err
	}()

	select {
	case <-ctx.Done():
	case err := <-copied:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(err)
		}
	}
	source.Close()
	receiver.Close()

	stats := receiver.Stats()
	log.Infof("%d samples, %d chips, %d telegrams", stats.Samples, stats.Chips, stats.Telegrams)
}
